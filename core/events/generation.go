package events

const (
	KindGenerationRequested Kind = "generation.requested"
	KindGenerationCompleted Kind = "generation.completed"
	KindGenerationFailed    Kind = "generation.failed"
	KindGenerationDropped   Kind = "generation.dropped"
)

// Generation identifies one generation request. Kind is "backchannel" or
// "answer".
type Generation struct {
	GenerationKind string
	GenerationID   uint64
}

type GenerationRequested struct {
	Base
	Generation
	SourceText string
}

func NewGenerationRequested(cycleID string, generation Generation, sourceText string) GenerationRequested {
	return GenerationRequested{Base: NewBase(KindGenerationRequested, cycleID), Generation: generation, SourceText: sourceText}
}

// GenerationCompleted carries generated text. Skipped is set when the
// generator decided no utterance is needed.
type GenerationCompleted struct {
	Base
	Generation
	Text    string
	Skipped bool
}

func NewGenerationCompleted(cycleID string, generation Generation, text string, skipped bool) GenerationCompleted {
	return GenerationCompleted{Base: NewBase(KindGenerationCompleted, cycleID), Generation: generation, Text: text, Skipped: skipped}
}

type GenerationFailed struct {
	Base
	Generation
	Err error
}

func NewGenerationFailed(cycleID string, generation Generation, err error) GenerationFailed {
	return GenerationFailed{Base: NewBase(KindGenerationFailed, cycleID), Generation: generation, Err: err}
}

type GenerationDropped struct {
	Base
	Generation
}

func NewGenerationDropped(cycleID string, generation Generation) GenerationDropped {
	return GenerationDropped{Base: NewBase(KindGenerationDropped, cycleID), Generation: generation}
}

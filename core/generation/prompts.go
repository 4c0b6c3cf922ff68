package generation

const (
	DefaultBackchannelPrompt = "対話履歴を踏まえて適切な相槌を生成してください。" +
		"ユーザの発話は音声認識の途中である可能性があります。" +
		"相手が発話途中である可能性が高い場合はリスクを避け「うん」「うんうん」「あー」「えーっと」「うーん」など無難な相槌を出力してください。"

	DefaultAnswerPrompt = "以下の会話履歴を参考に、適切な回答を生成してください。" +
		"ただし、あなた（アシスタント）はすでに一言目（対話履歴の末尾に付与されている）を発話していますので自然につながるように二言目以降を生成してください。" +
		"例えば一言目と全く同じことを生成することは基本的に避けてください。" +
		"対話の流れを踏まえ二言目以降を生成する必要がなければ`NA`とだけ出力してください。" +
		"また、これは音声対話であるため、回答はなるべく短く簡潔にしてください。"

	// SkipMarker is the whole answer a model gives when nothing needs to
	// follow the backchannel.
	SkipMarker = "NA"
)

const (
	BackchannelSeparators = "、、。！？!?"
	SentenceSeparators    = "。！？!?"
)

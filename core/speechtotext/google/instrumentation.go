package google

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/jiroshimaya/fastvoicechat/core/speechtotext/google"

var logger = otelslog.NewLogger(scopeName)

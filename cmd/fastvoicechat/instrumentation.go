package main

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/jiroshimaya/fastvoicechat/cmd/fastvoicechat"

var logger = otelslog.NewLogger(scopeName)

package log

import "fmt"

// callerInfo is the resolved, cacheable result of a runtime.Caller lookup.
type callerInfo struct {
	file     string
	function string
	line     int
}

var _UnknownCallerInfo = &callerInfo{file: "unknown", function: "unknown", line: 0}

func newCallerInfo(file, function string, line int) *callerInfo {
	return &callerInfo{file: file, function: function, line: line}
}

func (c *callerInfo) String() string {
	return fmt.Sprintf("%s:%d:%s", c.file, c.line, c.function)
}

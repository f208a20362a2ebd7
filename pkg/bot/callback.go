package bot

import (
	"strconv"
	"strings"
)

// Callback verbs. Button data is "verb" or "verb:arg" and must stay within
// the 64 bytes Telegram allows.
const (
	cbOpen           = "o"
	cbBack           = "b"
	cbPage           = "pg"
	cbNoop           = "nop"
	cbMultiselect    = "ms"
	cbDownload       = "dl"
	cbDelete         = "rm"
	cbCreate         = "cr"
	cbToggle         = "t"
	cbBulkDownload   = "mdl"
	cbBulkDelete     = "mrm"
	cbDrop           = "drop"
	cbLeaveSelect    = "msx"
	cbCreateFolder   = "cf"
	cbUploadQueue    = "up"
	cbCancelCreate   = "cx"
	cbCancelFolder   = "cfx"
	cbDequeue        = "dq"
	cbCommit         = "ucommit"
	cbCancelUpload   = "ux"
	maxCallbackBytes = 64
)

func encodeCallback(verb string, arg ...string) string {
	if len(arg) == 0 || arg[0] == "" {
		return verb
	}
	data := verb + ":" + arg[0]
	if len(data) > maxCallbackBytes {
		return cbNoop
	}
	return data
}

func decodeCallback(data string) (string, string) {
	verb, arg, _ := strings.Cut(data, ":")
	return verb, arg
}

func pageCallback(page int) string {
	return encodeCallback(cbPage, strconv.Itoa(page))
}

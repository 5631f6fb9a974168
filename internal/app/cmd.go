package app

import (
	"fmt"
	"strings"
)

// Command はouiouiバイナリのサブコマンド。
type Command string

const (
	CommandServe     Command = "serve"
	CommandWorker    Command = "worker"
	CommandMigrate   Command = "migrate"
	CommandProvision Command = "provision"
	// CommandHealthcheck はdistrolessイメージのDocker HEALTHCHECKから呼ばれる。
	// 設定を読み込まずに実行できる。
	CommandHealthcheck Command = "healthcheck"
)

// commands はサブコマンドと説明の一覧。usage表示の順序もこの順。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the HTTP server (default)"},
	{CommandWorker, "purge expired learner records from PostgreSQL"},
	{CommandMigrate, "apply database migrations"},
	{CommandProvision, "download the difficulty model into MODEL_DIR"},
	{CommandHealthcheck, "probe the local /health endpoint"},
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数がなければserve。2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage())
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: ouioui <command>\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.desc)
	}
	return b.String()
}

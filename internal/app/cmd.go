package app

import (
	"fmt"
	"strconv"
	"strings"
)

// Command はyogastudioのサブコマンド。
type Command string

const (
	CommandServe   Command = "serve"
	CommandWorker  Command = "worker"
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのHEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
)

// MigrateAction はmigrateサブコマンドの操作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// MigratePlan はmigrateの操作と、downで戻す件数。
type MigratePlan struct {
	Action MigrateAction
	Steps  int
}

// Invocation は解析済みのコマンドライン。
// MigrateはCommandがCommandMigrateのときだけ意味を持つ。
type Invocation struct {
	Command Command
	Migrate MigratePlan
}

// ParseArgs はos.Args[1:]を解析する。
// 引数なしはserve。serve/worker/healthcheckは追加引数を取らない。
//
//	migrate             未適用分をすべて適用
//	migrate up
//	migrate down [N]    N件（既定1件）戻す
//	migrate version
func ParseArgs(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{Command: CommandServe}, nil
	}

	cmd := Command(args[0])
	rest := args[1:]

	switch cmd {
	case CommandServe, CommandWorker, CommandHealthcheck:
		if len(rest) > 0 {
			return Invocation{}, fmt.Errorf("%s takes no arguments, got %q", cmd, strings.Join(rest, " "))
		}
		return Invocation{Command: cmd}, nil
	case CommandMigrate:
		plan, err := parseMigratePlan(rest)
		if err != nil {
			return Invocation{}, err
		}
		return Invocation{Command: cmd, Migrate: plan}, nil
	default:
		return Invocation{}, fmt.Errorf("unknown command %q (want serve, worker, migrate or healthcheck)", args[0])
	}
}

func parseMigratePlan(args []string) (MigratePlan, error) {
	if len(args) == 0 {
		return MigratePlan{Action: MigrateUp}, nil
	}

	action := MigrateAction(args[0])
	switch action {
	case MigrateUp, MigrateVersion:
		if len(args) > 1 {
			return MigratePlan{}, fmt.Errorf("migrate %s takes no arguments", action)
		}
		return MigratePlan{Action: action}, nil
	case MigrateDown:
		plan := MigratePlan{Action: MigrateDown, Steps: 1}
		switch len(args) {
		case 1:
		case 2:
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return MigratePlan{}, fmt.Errorf("invalid rollback steps: %q", args[1])
			}
			plan.Steps = n
		default:
			return MigratePlan{}, fmt.Errorf("migrate down takes at most one argument")
		}
		return plan, nil
	default:
		return MigratePlan{}, fmt.Errorf("unknown migrate action: %q", args[0])
	}
}

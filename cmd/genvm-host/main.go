// genvm-host is a developer front end for the GenVM host: it runs a single
// contract invocation (or a schema query) against an in-memory world state,
// using the same supervisor, wire protocol and engine binary the node uses.
package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/genlayer/go-genvm/genvm"
	"github.com/genlayer/go-genvm/state"
)

// nodeConfig is the optional YAML config for the tool itself. The engine's
// own configuration is separate and passed through verbatim.
type nodeConfig struct {
	Engine      string `yaml:"engine"`
	Verbosity   int    `yaml:"verbosity"`
	GenVMConfig string `yaml:"genvm-config"`
}

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config `FILE` for the tool (engine path, verbosity, engine config)",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "logging verbosity (0=crit .. 5=trace)",
		Value: 3,
	}
	engineFlag = &cli.StringFlag{
		Name:  "engine",
		Usage: "`PATH` to the genvm executable (default: GENVMPATH/GENVM_BIN/PATH search)",
	}
	codeFlag = &cli.StringFlag{
		Name:     "code",
		Usage:    "contract code `FILE`",
		Required: true,
	}
	contractFlag = &cli.StringFlag{
		Name:  "contract",
		Usage: "contract `ADDRESS` (0x hex)",
		Value: "0x" + strings.Repeat("cc", 20),
	}
	senderFlag = &cli.StringFlag{
		Name:  "sender",
		Usage: "sender `ADDRESS` (0x hex)",
		Value: "0x" + strings.Repeat("aa", 20),
	}
	calldataFlag = &cli.StringFlag{
		Name:  "calldata",
		Usage: "calldata as 0x hex, base64, or @`FILE` with raw bytes",
	}
	initFlag = &cli.BoolFlag{
		Name:  "init",
		Usage: "run the contract's deployment path",
	}
	genvmConfigFlag = &cli.StringFlag{
		Name:  "genvm-config",
		Usage: "engine configuration `FILE` passed through via --config",
	}
)

func main() {
	app := &cli.App{
		Name:  "genvm-host",
		Usage: "run GenVM contracts against an in-memory state",
		Flags: []cli.Flag{configFlag, verbosityFlag, engineFlag},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "execute one contract invocation",
				Flags:  []cli.Flag{codeFlag, contractFlag, senderFlag, calldataFlag, initFlag, genvmConfigFlag},
				Action: runAction,
			},
			{
				Name:      "schema",
				Usage:     "print the schema of a contract",
				ArgsUsage: "<code file>",
				Action:    schemaAction,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the optional YAML config, applies flag overrides and installs
// the logger. It returns the host and the engine config to pass through.
func setup(ctx *cli.Context) (*genvm.Host, string, error) {
	var cfg nodeConfig
	cfg.Verbosity = 3
	if path := ctx.String(configFlag.Name); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.Int(verbosityFlag.Name)
	}
	if ctx.IsSet(engineFlag.Name) {
		cfg.Engine = ctx.String(engineFlag.Name)
	}

	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(cfg.Verbosity), false)
	log.SetDefault(log.NewLogger(handler))
	if cfg.Engine != "" {
		genvm.SetEnginePath(cfg.Engine)
	}

	engineConf := cfg.GenVMConfig
	if ctx.IsSet(genvmConfigFlag.Name) {
		raw, err := os.ReadFile(ctx.String(genvmConfigFlag.Name))
		if err != nil {
			return nil, "", err
		}
		engineConf = string(raw)
	}
	return genvm.NewHost(log.Root()), engineConf, nil
}

func runAction(ctx *cli.Context) error {
	host, engineConf, err := setup(ctx)
	if err != nil {
		return err
	}
	code, err := os.ReadFile(ctx.String(codeFlag.Name))
	if err != nil {
		return err
	}
	calldata, err := parseBlob(ctx.String(calldataFlag.Name))
	if err != nil {
		return fmt.Errorf("parse calldata: %w", err)
	}
	contract := common.HexToAddress(ctx.String(contractFlag.Name))
	sender := common.HexToAddress(ctx.String(senderFlag.Name))

	st := state.NewMemoryState()
	st.SetCode(contract, code)

	res := host.RunContract(context.Background(), st, genvm.RunParams{
		From:     sender,
		Contract: contract,
		Calldata: calldata,
		IsInit:   ctx.Bool(initFlag.Name),
		Config:   engineConf,
	})
	return printResult(res)
}

func schemaAction(ctx *cli.Context) error {
	host, _, err := setup(ctx)
	if err != nil {
		return err
	}
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one code file argument")
	}
	code, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	schema, err := host.GetContractSchema(context.Background(), code)
	if err != nil {
		return err
	}
	fmt.Println(schema)
	return nil
}

func printResult(res *genvm.ExecutionResult) error {
	switch out := res.Result.(type) {
	case genvm.ExecutionReturn:
		fmt.Printf("return: 0x%s\n", hex.EncodeToString(out.Ret))
	case genvm.ExecutionRollback:
		fmt.Printf("rollback: %s\n", out.Message)
	case genvm.ExecutionFail:
		fmt.Printf("fail: %v\n", out.Err)
	}
	for call, data := range res.EqOutputs {
		fmt.Printf("eq output %d: %s\n", call, base64.StdEncoding.EncodeToString(data))
	}
	for _, tx := range res.PendingTransactions {
		enc, _ := json.Marshal(tx)
		fmt.Printf("pending tx: %s\n", enc)
	}
	if res.Stdout != "" {
		fmt.Printf("--- engine stdout ---\n%s", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Printf("--- engine stderr ---\n%s", res.Stderr)
	}
	if res.Failed() {
		return fmt.Errorf("execution failed")
	}
	return nil
}

// parseBlob accepts 0x hex, base64, or @file with raw bytes. An empty input
// yields empty calldata.
func parseBlob(in string) ([]byte, error) {
	switch {
	case in == "":
		return nil, nil
	case strings.HasPrefix(in, "@"):
		return os.ReadFile(in[1:])
	case strings.HasPrefix(in, "0x"):
		return hex.DecodeString(in[2:])
	default:
		return base64.StdEncoding.DecodeString(in)
	}
}

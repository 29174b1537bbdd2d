package cmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	gojson "github.com/goccy/go-json"
	"github.com/holiman/uint256"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"

	"github.com/ret2basic/erc4626-invariants/harness"
	"github.com/ret2basic/erc4626-invariants/vault/fast"
	"github.com/ret2basic/erc4626-invariants/vault/slow"
)

var OutFilePerm = os.FileMode(0o644)

// CampaignConfig is the full wiring of one campaign. Re-running the same
// config replays the same sequence.
type CampaignConfig struct {
	Seed     uint64 `json:"seed"`
	Steps    int    `json:"steps"`
	Actors   int    `json:"actors"`
	Decimals uint8  `json:"decimals"`
	// Variant selects the vault under test: "fast" or "slow".
	Variant string `json:"variant"`
}

// StepRecord is one executed operation of the trace, enough to replay a
// counterexample by hand.
type StepRecord struct {
	Step   int           `json:"step"`
	Target string        `json:"target"`
	Actor  string        `json:"actor"`
	Raw    hexutil.Bytes `json:"raw"`
}

// Report is the counterexample written when an invariant is violated.
type Report struct {
	Invariant int             `json:"invariant"`
	Tag       string          `json:"tag"`
	Detail    string          `json:"detail"`
	Config    *CampaignConfig `json:"config"`
	Trace     []StepRecord    `json:"trace"`
}

var (
	ConfigFlag = &cli.PathFlag{
		Name:  "config",
		Usage: "Path to the campaign config JSON",
		Value: "campaign.json",
	}
	OutputFlag = &cli.PathFlag{
		Name:  "output",
		Usage: "Path the counterexample report is written to on violation",
		Value: "counterexample.json",
	}
	DebugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Log precondition skips and per-step detail",
	}
	PProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "Collect a CPU profile of the campaign",
	}
)

func Run(ctx *cli.Context) error {
	if ctx.Bool(PProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	cfg, err := jsonutil.LoadJSON[CampaignConfig](ctx.Path(ConfigFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to load campaign config: %w", err)
	}
	if cfg.Actors <= 0 || cfg.Steps <= 0 {
		return fmt.Errorf("campaign needs at least one actor and one step")
	}

	lvl := slog.LevelInfo
	if ctx.Bool(DebugFlag.Name) {
		lvl = slog.LevelDebug
	}
	l := Logger(os.Stderr, lvl)

	actors := harness.NewActorSet()
	for i := 0; i < cfg.Actors; i++ {
		if _, err := actors.NewActor(); err != nil {
			return err
		}
	}
	assets := harness.NewAssetSet()
	id := assets.NewAsset(cfg.Decimals)
	tok, err := assets.Get(id)
	if err != nil {
		return err
	}

	var v harness.Vault
	switch cfg.Variant {
	case "fast", "":
		v = fast.New(tok, "Vault Shares", "vSHARE")
	case "slow":
		v = slow.New(tok, "vSHARE")
	default:
		return fmt.Errorf("unknown vault variant %q", cfg.Variant)
	}

	h, err := harness.New(v, actors, assets, id, l)
	if err != nil {
		return err
	}

	targets := h.Targets()
	catalog := h.Invariants()
	addrs := actors.Addrs()
	rng := newRand(cfg.Seed)
	var trace []StepRecord

	l.Info("campaign start", "variant", cfg.Variant, "steps", cfg.Steps, "actors", cfg.Actors, "seed", cfg.Seed)

	for step := 0; step < cfg.Steps; step++ {
		word := rng.next()
		actor := addrs[word.Uint64()%uint64(len(addrs))]
		if err := actors.Select(actor); err != nil {
			return err
		}
		tgt := targets[rng.next().Uint64()%uint64(len(targets))]
		raw := rng.next()

		rawBytes := raw.Bytes32()
		trace = append(trace, StepRecord{
			Step:   step,
			Target: tgt.Name,
			Actor:  actor.Hex(),
			Raw:    rawBytes[:],
		})
		l.Debug("step", "n", step, "target", tgt.Name, "actor", actor)

		if err := tgt.Run(actor, raw); err != nil {
			return fmt.Errorf("target %s failed at step %d: %w", tgt.Name, step, err)
		}

		for _, inv := range catalog {
			err := inv.Check()
			switch {
			case err == nil:
			case errors.Is(err, harness.ErrSkip):
				l.Debug("invariant skipped", "id", inv.ID, "reason", err)
			default:
				var viol *harness.Violation
				if errors.As(err, &viol) {
					l.Error("invariant violated", "id", viol.ID, "tag", viol.Tag)
					if werr := writeReport(ctx.Path(OutputFlag.Name), cfg, viol, trace); werr != nil {
						l.Error("failed to write counterexample", "err", werr)
					}
					return err
				}
				return fmt.Errorf("invariant %02d errored at step %d: %w", inv.ID, step, err)
			}
		}
	}

	l.Info("campaign complete", "steps", cfg.Steps, "violations", 0)
	return nil
}

func writeReport(path string, cfg *CampaignConfig, v *harness.Violation, trace []StepRecord) error {
	report := &Report{
		Invariant: v.ID,
		Tag:       v.Tag,
		Detail:    v.Error(),
		Config:    cfg,
		Trace:     trace,
	}
	out, err := gojson.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, OutFilePerm)
}

// rand is a keccak-chain pseudo-random source. Deterministic for a given
// seed, which is all a replayable campaign needs.
type rand struct {
	state [32]byte
}

func newRand(seed uint64) *rand {
	r := &rand{}
	binary.BigEndian.PutUint64(r.state[24:], seed)
	return r
}

func (r *rand) next() *uint256.Int {
	copy(r.state[:], crypto.Keccak256(r.state[:]))
	out := new(uint256.Int)
	out.SetBytes32(r.state[:])
	return out
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Run a randomized invariant campaign against a vault",
	Description: "Drives random target operations through the simulated actors and checks the full invariant catalog after every step. A violation writes a counterexample report and exits non-zero.",
	Action:      Run,
	Flags: []cli.Flag{
		ConfigFlag,
		OutputFlag,
		DebugFlag,
		PProfCPUFlag,
	},
}

package chaintool

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	cnserrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

// GenesisTimestamp runs `forest-cli chain genesis` and returns the
// timestamp of the genesis block, grounded on the original
// get_genesis_timestamp helper.
func GenesisTimestamp(ctx context.Context, r *Runner, env []string) (int64, error) {
	res, err := r.Run(ctx, "forest-cli", []string{"chain", "genesis"}, env)
	if err != nil {
		return 0, cnserrors.Wrap(cnserrors.ErrCodeToolFailure, "forest-cli chain genesis", err)
	}
	if res.ExitCode != 0 {
		return 0, cnserrors.New(cnserrors.ErrCodeToolFailure, "forest-cli chain genesis exited non-zero: "+res.Output)
	}

	return parseGenesisOutput(res.Output)
}

// parseGenesisOutput extracts the genesis block's timestamp from
// `forest-cli chain genesis`'s JSON output. The real shape is a single
// head-info object with a Blocks array, per get_genesis_timestamp in
// the original implementation.
func parseGenesisOutput(output string) (int64, error) {
	var head struct {
		Blocks []struct {
			Timestamp int64 `json:"Timestamp"`
		} `json:"Blocks"`
	}
	if err := json.Unmarshal([]byte(output), &head); err != nil {
		return 0, cnserrors.Wrap(cnserrors.ErrCodeMalformedMessage, "parse genesis output", err)
	}
	if len(head.Blocks) == 0 {
		return 0, cnserrors.New(cnserrors.ErrCodeToolFailure, "genesis output contained no blocks")
	}
	return head.Blocks[0].Timestamp, nil
}

// CurrentEpoch runs `forest-cli chain head --format json` and returns the
// chain's current head epoch, grounded on the original get_current_epoch
// helper.
func CurrentEpoch(ctx context.Context, r *Runner, env []string) (int64, error) {
	res, err := r.Run(ctx, "forest-cli", []string{"chain", "head", "--format", "json"}, env)
	if err != nil {
		return 0, cnserrors.Wrap(cnserrors.ErrCodeToolFailure, "forest-cli chain head", err)
	}
	if res.ExitCode != 0 {
		return 0, cnserrors.New(cnserrors.ErrCodeToolFailure, "forest-cli chain head exited non-zero: "+res.Output)
	}

	return parseCurrentEpochOutput(res.Output)
}

// parseCurrentEpochOutput extracts the head epoch from `forest-cli
// chain head --format json`'s output. Unlike the genesis report, this
// one really is a top-level JSON array, per get_current_epoch in the
// original implementation.
func parseCurrentEpochOutput(output string) (int64, error) {
	var entries []struct {
		Epoch int64 `json:"Epoch"`
	}
	if err := json.Unmarshal([]byte(output), &entries); err != nil {
		return 0, cnserrors.Wrap(cnserrors.ErrCodeMalformedMessage, "parse chain head output", err)
	}
	if len(entries) == 0 {
		return 0, cnserrors.New(cnserrors.ErrCodeToolFailure, "chain head output contained no entries")
	}
	return entries[0].Epoch, nil
}

// ResolveFullNodeAPIInfo builds the FULLNODE_API_INFO value every
// chain-tool invocation is given in its environment:
// "<token>:/ip4/<resolved_ip>/tcp/<port>/http", where the token is read
// from tokenPath and host is resolved to its first IPv4 address.
func ResolveFullNodeAPIInfo(tokenPath, host string, port int) (string, error) {
	tokenBytes, err := os.ReadFile(tokenPath)
	if err != nil {
		return "", cnserrors.Wrap(cnserrors.ErrCodeFatal, "read forest token file", err)
	}
	token := strings.TrimSpace(string(tokenBytes))

	ips, err := net.LookupIP(host)
	if err != nil {
		return "", cnserrors.Wrap(cnserrors.ErrCodeTransient, "resolve forest host", err)
	}
	var ipv4 net.IP
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			ipv4 = v4
			break
		}
	}
	if ipv4 == nil {
		return "", cnserrors.New(cnserrors.ErrCodeTransient, "no IPv4 address found for "+host)
	}

	return fmt.Sprintf("%s:/ip4/%s/tcp/%d/http", token, ipv4.String(), port), nil
}

// BuildEnv returns the process environment with FULLNODE_API_INFO appended,
// the environment every chain-tool subprocess invocation is given.
func BuildEnv(tokenPath, host string, port int) ([]string, error) {
	apiInfo, err := ResolveFullNodeAPIInfo(tokenPath, host, port)
	if err != nil {
		return nil, err
	}
	env := append(os.Environ(), "FULLNODE_API_INFO="+apiInfo)
	return env, nil
}

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/astrachat/astrachat/internal/config"
	"github.com/astrachat/astrachat/internal/mcp"
	"github.com/astrachat/astrachat/internal/zodiac"
	"github.com/astrachat/astrachat/pkg/models"
)

// Encoding selects how tool arguments are shaped on the wire. Servers differ:
// some take native sign names, some English ones, and the loosest take a bare
// string instead of an object.
type Encoding string

const (
	EncodingNative  Encoding = "native"
	EncodingEnglish Encoding = "english"
	EncodingBare    Encoding = "bare"
)

var encodings = []Encoding{EncodingNative, EncodingEnglish, EncodingBare}

// Attempt is one rung of the degradation ladder: a transport factory paired
// with an argument encoding. Dial builds a fresh transport per try so a
// half-dead connection never leaks into the next attempt.
type Attempt struct {
	Transport string
	Encoding  Encoding
	Dial      func() mcp.Transport
}

// buildPlan derives the ordered attempt list from configuration: every
// encoding over streaming HTTP first, then every encoding over the subprocess
// pipe when one is configured.
func buildPlan(cfg *config.Config) []Attempt {
	var plan []Attempt
	for _, enc := range encodings {
		enc := enc
		plan = append(plan, Attempt{
			Transport: "streaming-http",
			Encoding:  enc,
			Dial: func() mcp.Transport {
				return mcp.NewStreamTransport(cfg.MCPURL, cfg.MCPAPIKey, cfg.AttemptTimeout)
			},
		})
	}
	if cfg.MCPCommand != "" {
		fields := strings.Fields(cfg.MCPCommand)
		for _, enc := range encodings {
			enc := enc
			plan = append(plan, Attempt{
				Transport: "stdio-pipe",
				Encoding:  enc,
				Dial: func() mcp.Transport {
					return mcp.NewPipeTransport(fields[0], fields[1:]...)
				},
			})
		}
	}
	return plan
}

// encodeArguments renders the intent arguments for one encoding. The native
// form passes the resolved arguments through; the English form translates
// sign names; the bare form collapses to the tool's primary string.
func encodeArguments(intent models.ResolvedIntent, enc Encoding) any {
	switch enc {
	case EncodingEnglish:
		args := make(map[string]any, len(intent.Arguments))
		for k, v := range intent.Arguments {
			args[k] = v
		}
		for _, key := range []string{"zodiac", "sign1", "sign2"} {
			if name, ok := args[key].(string); ok && name != "" && name != models.UnknownZodiac {
				args[key] = zodiac.Translate(name)
			}
		}
		return args
	case EncodingBare:
		return bareArgument(intent)
	default:
		args := make(map[string]any, len(intent.Arguments))
		for k, v := range intent.Arguments {
			args[k] = v
		}
		return args
	}
}

func bareArgument(intent models.ResolvedIntent) string {
	switch intent.Tool {
	case models.ToolCompatibility:
		return intent.StringArg("sign1") + "," + intent.StringArg("sign2")
	case models.ToolZodiacByDate:
		return fmt.Sprintf("%d-%d", intent.IntArg("month"), intent.IntArg("day"))
	case models.ToolAskZodiac:
		return intent.StringArg("question")
	default:
		return intent.StringArg("zodiac")
	}
}

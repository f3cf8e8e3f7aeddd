package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeService = "order-service"
	ModeWorker  = "order-worker"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeService, "service", "api":
		return ModeService, true
	case ModeWorker, "worker":
		return ModeWorker, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `order-service --port=8080`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--mode=") {
			mode = strings.TrimPrefix(arg, "--mode=")
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, nil
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // switch the color to cyan

	fmt.Fprintln(w, `Usage:
  ./food-ordering-platform --mode=<service> [flags]

Services (modes):
  order-service    HTTP API for placing and querying orders
  order-worker     RabbitMQ consumer that confirms orders

Examples:
  ./food-ordering-platform --mode=order-service --port=8080 --config=config/config.yaml
  ./food-ordering-platform --mode=order-worker --prefetch=1 --max-attempts=5`)

	fmt.Fprint(w, "\033[0m") // switch back to normal
}

func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./food-ordering-platform --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}

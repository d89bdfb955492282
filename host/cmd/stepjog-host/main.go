package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"stepjog/host/pendant"
	"stepjog/host/serial"
	"stepjog/logging"
	"stepjog/motion"
	"stepjog/protocol"
	"stepjog/standalone/config"
	"stepjog/ui"
)

var (
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	sim        = flag.Bool("sim", false, "Run against an in-process simulated controller")
	configPath = flag.String("config", "", "Controller configuration (YAML); defaults when empty")
	logLevel   = flag.String("log-level", "", "Override the configured log level")
	timeout    = flag.Duration("timeout", time.Second, "Response timeout")
	renderPath = flag.String("render", "", "Render the dashboard to a PNG file and exit")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	logCfg := logging.Config(cfg.Logging)
	if *logLevel != "" {
		logCfg.Level = *logLevel
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, logger.Close()) }()
	log := logger.Named("host")

	var port serial.Port
	if *sim {
		s := pendant.StartSimulator(cfg, log.Logger)
		defer func() { err = multierr.Append(err, s.Close()) }()
		port = s.Port()
	} else {
		log.Info("connecting", "device", *device, "baud", *baud)
		scfg := serial.DefaultConfig(*device)
		scfg.Baud = *baud
		if port, err = serial.Open(scfg); err != nil {
			return err
		}
		if err := port.Flush(); err != nil {
			log.Warn("flush failed", "error", err)
		}
		if np, ok := port.(*serial.NativePort); ok {
			log.Debug("port open", "device", np.Device())
		}
	}
	defer func() { err = multierr.Append(err, port.Close()) }()

	client := pendant.NewClient(port, *timeout, log.Logger)
	client.Drain(100 * time.Millisecond)
	for _, line := range client.Notices() {
		fmt.Println(line)
	}

	if *renderPath != "" {
		return render(client, &cfg, *renderPath)
	}
	return interactive(client, &cfg, os.Stdin, os.Stdout)
}

func interactive(client *pendant.Client, cfg *config.Config, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Enter requests (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil

		case "help":
			printHelp(out)
			forward(client, out, line)

		case "watch":
			d := 5 * time.Second
			if len(parts) > 1 {
				secs, err := strconv.ParseFloat(parts[1], 64)
				if err != nil || secs <= 0 {
					fmt.Fprintf(out, "Invalid duration: %s\n", parts[1])
					continue
				}
				d = time.Duration(secs * float64(time.Second))
			}
			watch(client, cfg, out, d)

		case "render":
			if len(parts) != 2 {
				fmt.Fprintln(out, "Usage: render <file.png>")
				continue
			}
			if err := render(client, cfg, parts[1]); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Wrote %s\n", parts[1])

		default:
			forward(client, out, line)
		}

		for _, n := range client.Notices() {
			fmt.Fprintln(out, n)
		}
	}

	return scanner.Err()
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nHost commands:")
	fmt.Fprintln(out, "  watch [secs]   - Poll status (default 5s)")
	fmt.Fprintln(out, "  render <file>  - Draw the dashboard to a PNG")
	fmt.Fprintln(out, "  quit/exit/q    - Exit the program")
	fmt.Fprintln(out, "\nController commands:")
}

// forward sends line unchanged and prints the response
func forward(client *pendant.Client, out io.Writer, line string) {
	lines, err := client.Do(line)
	for _, l := range lines {
		if protocol.IsStatus(l) {
			printStatus(out, l)
			continue
		}
		fmt.Fprintln(out, l)
	}
	switch {
	case err != nil:
		fmt.Fprintf(out, "Error: %v\n", err)
	case len(lines) == 0 || !protocol.IsStatus(lines[len(lines)-1]):
		fmt.Fprintln(out, protocol.ResponseOK)
	}
}

func printStatus(out io.Writer, line string) {
	st, err := protocol.ParseStatus(line)
	if err != nil {
		fmt.Fprintf(out, "%s (%v)\n", line, err)
		return
	}
	fmt.Fprintln(out, describe(st))
}

func describe(st protocol.Status) string {
	return fmt.Sprintf("%-11s pos=%d (%.5f) speed=%.1f steps/s tier=%d running=%v",
		st.State, st.Position, st.Units, st.Speed, st.Tier, st.Running)
}

func watch(client *pendant.Client, cfg *config.Config, out io.Writer, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	var start time.Time
	err := client.Watch(ctx, cfg.UI.PollInterval, func(r pendant.StatusReport) {
		if start.IsZero() {
			start = r.At
		}
		fmt.Fprintf(out, "%7.3fs %s\n", r.At.Sub(start).Seconds(), describe(r.Status))
	})
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

// render draws the dashboard for the controller's current status
func render(client *pendant.Client, cfg *config.Config, path string) error {
	st, err := client.Status()
	if err != nil {
		return err
	}
	speeds := cfg.SpeedSelector()
	speeds.Select(st.Tier)

	snap := motion.Snapshot{
		Position: st.Position,
		Running:  st.Running,
		State:    st.State,
		Speed:    st.Speed,
	}
	layout := ui.DefaultLayout(int16(cfg.UI.Width), int16(cfg.UI.Height))
	view := ui.NewView(snap, cfg.Scale(), speeds, cfg.ExecutorConfig().Acceleration)
	return ui.SavePNG(path, &layout, view)
}

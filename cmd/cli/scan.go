package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/anstrom/modscan/internal/api/handlers"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/scanning"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

// maxValuesShown caps the values printed per result row.
const maxValuesShown = 8

type scanOptions struct {
	ip           string
	port         int
	slaveID      int
	start        int
	end          int
	registers    bool
	coils        bool
	discrete     bool
	inputRegs    bool
	discover     bool
	slaveStart   int
	slaveEnd     int
	pollInterval time.Duration
	noWait       bool
	output       string
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Submit a scan and follow it to completion",
		Long: `Submit a scan to a running modscan server, poll its status until it
reaches a terminal state and print the collected results.

Unset numeric flags fall back to the server defaults: port 502, slave ID 1,
addresses 0-10 and discovery over slave IDs 1-255. The end address is
exclusive. Interrupting the command asks the server to stop the scan.`,
		Example: `  modscan scan --ip 192.168.1.10 --registers
  modscan scan --ip 192.168.1.10 --registers --coils --start 0 --end 100
  modscan scan --ip plc.local --discover --slave-id-start 1 --slave-id-end 10
  modscan scan --ip 10.0.0.5 --port 1502 --input-registers --no-wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("poll-interval") {
				if cfg, err := loadConfig(); err == nil {
					opts.pollInterval = cfg.Scanning.PollInterval
				}
			}
			return runScan(ctx, newClientFromFlags(), buildScanRequest(cmd.Flags(), opts), opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ip, "ip", "", "target IP address or hostname")
	f.IntVar(&opts.port, "port", 0, "target TCP port")
	f.IntVar(&opts.slaveID, "slave-id", 0, "slave ID used for object reads")
	f.IntVar(&opts.start, "start", 0, "first address (inclusive)")
	f.IntVar(&opts.end, "end", 0, "last address (exclusive)")
	f.BoolVar(&opts.registers, "registers", false, "read holding registers")
	f.BoolVar(&opts.coils, "coils", false, "read coils")
	f.BoolVar(&opts.discrete, "discrete-inputs", false, "read discrete inputs")
	f.BoolVar(&opts.inputRegs, "input-registers", false, "read input registers")
	f.BoolVar(&opts.discover, "discover", false, "discover responding slave IDs")
	f.IntVar(&opts.slaveStart, "slave-id-start", 0, "first slave ID to discover")
	f.IntVar(&opts.slaveEnd, "slave-id-end", 0, "last slave ID to discover (inclusive)")
	f.DurationVar(&opts.pollInterval, "poll-interval", time.Second, "status polling interval")
	f.BoolVar(&opts.noWait, "no-wait", false, "return right after the scan is accepted")
	f.StringVarP(&opts.output, "output", "o", outputTable, "results format: table or json")

	_ = cmd.MarkFlagRequired("ip")
	cmd.PreRunE = func(*cobra.Command, []string) error {
		return validateOutput(opts.output)
	}

	return cmd
}

// buildScanRequest copies only the numeric flags the user set so the server
// applies its own defaults for the rest.
func buildScanRequest(flags *pflag.FlagSet, opts *scanOptions) *handlers.ScanRequest {
	req := &handlers.ScanRequest{
		IP:                 opts.ip,
		ScanRegisters:      opts.registers,
		ScanCoils:          opts.coils,
		ScanDiscreteInputs: opts.discrete,
		ScanInputRegisters: opts.inputRegs,
		DiscoverSlaveIDs:   opts.discover,
	}

	numeric := []struct {
		flag  string
		value int
		dest  *handlers.FlexInt
	}{
		{"port", opts.port, &req.Port},
		{"slave-id", opts.slaveID, &req.SlaveID},
		{"start", opts.start, &req.StartAddress},
		{"end", opts.end, &req.EndAddress},
		{"slave-id-start", opts.slaveStart, &req.SlaveIDStart},
		{"slave-id-end", opts.slaveEnd, &req.SlaveIDEnd},
	}
	for _, n := range numeric {
		if flags.Changed(n.flag) {
			*n.dest = handlers.IntValue(n.value)
		}
	}
	return req
}

func runScan(ctx context.Context, client *APIClient, req *handlers.ScanRequest, opts *scanOptions, w io.Writer) error {
	ack, err := client.SubmitScan(ctx, req)
	if err != nil {
		return err
	}

	switch ack.Status {
	case handlers.SubmitStarted:
		fmt.Fprintf(w, "Scan %s started (%d tasks)\n", ack.ScanID, ack.TotalTasks)
	case handlers.SubmitBusy:
		return fmt.Errorf("scan not started: %s", ack.Message)
	default:
		if ack.Kind != "" {
			return fmt.Errorf("scan rejected (%s): %s", ack.Kind, ack.Message)
		}
		return fmt.Errorf("scan rejected: %s", ack.Message)
	}

	if opts.noWait {
		return nil
	}

	status, err := pollUntilTerminal(ctx, client, opts.pollInterval, w)
	if err != nil {
		if ctx.Err() != nil {
			return stopAfterInterrupt(client, w)
		}
		return err
	}

	results, err := client.ScanResults(ctx)
	if err != nil {
		return err
	}
	if err := writeResults(w, results, opts.output); err != nil {
		return err
	}

	switch status.Status {
	case scanning.StatusFailed, scanning.StatusError:
		return fmt.Errorf("scan %s: %s", status.Status, status.Message)
	}
	return nil
}

// pollUntilTerminal reads the status on a fixed cadence and prints every new
// message until the job reaches a terminal state.
func pollUntilTerminal(
	ctx context.Context, client *APIClient, interval time.Duration, w io.Writer,
) (*handlers.StatusResponse, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		status, err := client.ScanStatus(ctx)
		if err != nil {
			return nil, err
		}

		line := fmt.Sprintf("[%3d%%] %s", status.Progress, status.Message)
		if line != last {
			fmt.Fprintln(w, line)
			last = line
		}
		if status.Status.IsTerminal() {
			fmt.Fprintf(w, "Scan finished: %s\n", status.Status)
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func stopAfterInterrupt(client *APIClient, w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.StopScan(ctx)
	if err != nil {
		logging.Warn("Failed to stop scan after interrupt", "error", err)
		return fmt.Errorf("interrupted, stop request failed: %w", err)
	}
	fmt.Fprintf(w, "Interrupted: %s\n", resp.Message)
	return context.Canceled
}

func validateOutput(output string) error {
	switch output {
	case outputTable, outputJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q (use table or json)", output)
}

func writeResults(w io.Writer, results *handlers.ResultsResponse, output string) error {
	if output == outputJSON {
		return writeJSON(w, results)
	}
	return renderResultsTable(w, results)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResultsTable prints one row per probe followed by the summary.
func renderResultsTable(w io.Writer, results *handlers.ResultsResponse) error {
	if len(results.Tasks) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Station", "Object", "Address", "Count", "Outcome", "Detail", "Time")

	for i := range results.Tasks {
		task := &results.Tasks[i]

		object := string(task.Kind)
		address := "-"
		if task.Kind == scanning.TaskRead {
			object = task.ObjectType.Label()
			address = strconv.Itoa(task.Address)
		}

		if err := table.Append([]string{
			strconv.Itoa(task.Station),
			object,
			address,
			strconv.Itoa(task.Count),
			string(task.Outcome.Kind),
			describeOutcome(task.Outcome),
			(time.Duration(task.DurationMS) * time.Millisecond).String(),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := results.Summary
	_, err := fmt.Fprintf(w, "\n%d probes: %d succeeded, %d timeouts, %d protocol errors, %d connection errors\n",
		s.Total, s.Succeeded, s.Timeouts, s.ProtocolErrors, s.ConnectionErrors)
	if err != nil {
		return err
	}
	if len(s.DiscoveredStations) > 0 {
		ids := make([]string, len(s.DiscoveredStations))
		for i, id := range s.DiscoveredStations {
			ids[i] = strconv.Itoa(id)
		}
		_, err = fmt.Fprintf(w, "Responding slave IDs: %s\n", strings.Join(ids, ", "))
	}
	return err
}

func describeOutcome(o scanning.ProbeOutcome) string {
	switch o.Kind {
	case scanning.OutcomeSuccess:
		if len(o.Values) == 0 {
			return "present"
		}
		shown := o.Values
		if len(shown) > maxValuesShown {
			shown = shown[:maxValuesShown]
		}
		parts := make([]string, len(shown))
		for i, v := range shown {
			parts[i] = strconv.Itoa(int(v))
		}
		text := strings.Join(parts, " ")
		if len(o.Values) > maxValuesShown {
			text += fmt.Sprintf(" (+%d)", len(o.Values)-maxValuesShown)
		}
		return text
	case scanning.OutcomeProtocolError:
		return fmt.Sprintf("exception 0x%02X %s", o.ExceptionCode, o.Detail)
	default:
		return o.Detail
	}
}

func newStatusCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the current or last scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			status, err := newClientFromFlags().ScanStatus(cmd.Context())
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), status, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "format: table or json")
	return cmd
}

func writeStatus(w io.Writer, status *handlers.StatusResponse, output string) error {
	if output == outputJSON {
		return writeJSON(w, status)
	}

	fmt.Fprintf(w, "Status:   %s\n", status.Status)
	if status.ScanID != "" {
		fmt.Fprintf(w, "Scan ID:  %s\n", status.ScanID)
	}
	fmt.Fprintf(w, "Progress: %d%% (%d/%d tasks)\n", status.Progress, status.CompletedTasks, status.TotalTasks)
	_, err := fmt.Fprintf(w, "Message:  %s\n", status.Message)
	return err
}

func newResultsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Print the results of the current or last scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			results, err := newClientFromFlags().ScanResults(cmd.Context())
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), results, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "format: table or json")
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClientFromFlags().StopScan(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return err
		},
	}
}

func newTestConnectionCmd() *cobra.Command {
	var (
		ip   string
		port int
	)
	cmd := &cobra.Command{
		Use:     "test-connection",
		Short:   "Check whether an endpoint answers Modbus TCP",
		Example: `  modscan test-connection --ip 192.168.1.10 --port 502`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &handlers.ConnectionTestRequest{IP: ip}
			if cmd.Flags().Changed("port") {
				req.Port = handlers.IntValue(port)
			}
			report, err := newClientFromFlags().TestConnection(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeConnectionReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "target IP address or hostname")
	cmd.Flags().IntVar(&port, "port", 0, "target TCP port (default 502)")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func writeConnectionReport(w io.Writer, report *scanning.ConnectionReport) error {
	state := "not available"
	if report.Available {
		state = "available"
	}
	_, err := fmt.Fprintf(w, "Modbus %s: %s\n", state, report.Message)
	return err
}

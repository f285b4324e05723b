// whisper-cli is a thin command-line front end over the whisper storage
// engine: argument parsing, output formatting, and calls into the
// whisper package. It contains no storage logic of its own.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/xtxerr/whisper"
	cliconfig "github.com/xtxerr/whisper/cmd/whisper-cli/config"
	"github.com/xtxerr/whisper/internal/werrors"
	"github.com/xtxerr/whisper/internal/wlog"
	"github.com/xtxerr/whisper/internal/wretention"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	initLogging(os.Getenv("WHISPER_JSON_LOG") == "1", os.Getenv("WHISPER_DEBUG") == "1")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = runCreate(args)
	case "update":
		err = runUpdate(args)
	case "fetch":
		err = runFetch(args)
	case "info":
		err = runInfo(args)
	case "merge":
		err = runMerge(args)
	case "fill":
		err = runFill(args)
	case "diff":
		err = runDiff(args)
	case "resize":
		err = runResize(args)
	case "set-aggregation":
		err = runSetAggregation(args)
	case "estimate":
		err = runEstimate(args)
	case "dump":
		err = runDump(args)
	case "find-corrupt":
		err = runFindCorrupt(args)
	case "shell":
		err = runShell(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "whisper-cli: unknown subcommand %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		kind := werrors.Classify(err)
		fmt.Fprintf(os.Stderr, "whisper-cli %s: [%s] %v\n", cmd, kind, err)
		os.Exit(exitCode(kind))
	}
}

// exitCode maps an error's Kind to a process exit code, so scripts driving
// whisper-cli can branch on failure category instead of parsing stderr.
func exitCode(kind werrors.Kind) int {
	switch kind {
	case werrors.KindInvalidConfiguration:
		return 2
	case werrors.KindFileExists:
		return 3
	case werrors.KindCorruptFile:
		return 4
	case werrors.KindTimestampNotCovered, werrors.KindArchiveBoundary:
		return 5
	case werrors.KindIOFailure:
		return 6
	default:
		return 1
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `whisper-cli %s

Usage: whisper-cli <command> [flags]

Commands:
  create           lay out a new .wsp file
  update           write a single point
  fetch            read a time range
  info             print header and archive info
  merge            copy one file's data into another
  fill             copy only missing points into another file
  diff             compare two files archive by archive
  resize           rebuild a file with a new archive spec
  set-aggregation  change the aggregation method (and optionally xff)
  estimate         compute the file size an archive spec would produce
  dump             print every slot of every archive
  find-corrupt     validate a batch of files without stopping at the first error
  shell            interactive REPL for exploring one file
`, Version)
}

func initLogging(jsonLog bool, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	wlog.Init(level, jsonLog)
}

func loadCLIConfig(path string) (*cliconfig.Config, error) {
	if path == "" {
		return cliconfig.DefaultConfig(), nil
	}
	return cliconfig.Load(path)
}

func parseArchiveSpec(spec string) ([]whisper.Archive, error) {
	defs, err := wretention.ParseAll(spec)
	if err != nil {
		return nil, err
	}
	archives := make([]whisper.Archive, len(defs))
	for i, d := range defs {
		archives[i] = whisper.Archive{SecondsPerPoint: d.SecondsPerPoint, Points: d.Points}
	}
	return archives, nil
}

func parseAggregation(s string) (whisper.Aggregation, error) {
	if s == "" {
		return whisper.Average, nil
	}
	return whisper.ParseAggregation(s)
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	config := fs.String("config", "", "whisper-cli defaults file")
	retentions := fs.String("retentions", "", "comma-separated retention spec, e.g. 60s:1d,15m:30d")
	xff := fs.Float64("xff", -1, "x_files_factor override")
	agg := fs.String("aggregation", "", "aggregation method override")
	sparse := fs.Bool("sparse", false, "create a sparse (hole-punched) file")
	lock := fs.Bool("lock", false, "hold an advisory lock while writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: whisper-cli create [flags] <path>")
	}
	path := fs.Arg(0)

	cfg, err := loadCLIConfig(*config)
	if err != nil {
		return err
	}
	retSpec := *retentions
	if retSpec == "" {
		retSpec = cfg.Create.Retentions
	}
	archives, err := parseArchiveSpec(retSpec)
	if err != nil {
		return err
	}
	xffVal := float32(cfg.Create.XFilesFactor)
	if *xff >= 0 {
		xffVal = float32(*xff)
	}
	aggToken := cfg.Create.Aggregation
	if *agg != "" {
		aggToken = *agg
	}
	aggregation, err := parseAggregation(aggToken)
	if err != nil {
		return err
	}

	return whisper.Create(path, archives, whisper.CreateOptions{
		XFilesFactor: xffVal,
		Aggregation:  aggregation,
		Sparse:       *sparse || cfg.Create.Sparse,
		Lock:         *lock || cfg.IO.Lock,
	})
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	timestamp := fs.Uint("timestamp", 0, "point timestamp (unix seconds); 0 means now")
	lock := fs.Bool("lock", true, "hold an advisory lock while writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: whisper-cli update [flags] <path> <value>")
	}
	path := fs.Arg(0)
	value, err := strconv.ParseFloat(fs.Arg(1), 64)
	if err != nil {
		return fmt.Errorf("parse value: %w", err)
	}
	return whisper.Update(path, value, uint32(*timestamp), whisper.UpdateOptions{Lock: *lock})
}

func runFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	from := fs.Uint("from", 0, "start of range (unix seconds)")
	until := fs.Uint("until", 0, "end of range (unix seconds); 0 means now")
	granularity := fs.Uint("granularity", 0, "require this exact archive step")
	percentiles := fs.Bool("percentiles", false, "print p50/p90/p95/p99 instead of raw values")
	lock := fs.Bool("lock", false, "hold an advisory shared lock while reading")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: whisper-cli fetch [flags] <path>")
	}
	path := fs.Arg(0)

	result, err := whisper.Fetch(path, uint32(*from), uint32(*until), whisper.FetchOptions{
		Granularity: uint32(*granularity),
		Lock:        *lock,
	})
	if err != nil {
		return err
	}

	if *percentiles {
		p, err := whisper.Summarize(result)
		if err != nil {
			return err
		}
		fmt.Printf("count=%d p50=%v p90=%v p95=%v p99=%v\n", p.Count, p.P50, p.P90, p.P95, p.P99)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"timestamp", "value"})
	for i, v := range result.Values {
		ts := result.From + uint32(i)*result.Step
		if i < len(result.Known) && result.Known[i] {
			table.Append([]string{formatTime(ts), strconv.FormatFloat(v, 'g', -1, 64)})
		} else {
			table.Append([]string{formatTime(ts), "None"})
		}
	}
	table.Render()
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: whisper-cli info <path>")
	}
	info, err := whisper.Info(fs.Arg(0))
	if err != nil {
		return err
	}
	printInfo(info)
	return nil
}

func printInfo(info whisper.FileInfo) {
	fmt.Printf("aggregation method: %s\n", info.Aggregation)
	fmt.Printf("max retention: %d\n", info.MaxRetention)
	fmt.Printf("x_files_factor: %v\n", info.XFilesFactor)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"archive", "seconds_per_point", "points", "retention"})
	for i, a := range info.Archives {
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatUint(uint64(a.SecondsPerPoint), 10),
			strconv.FormatUint(uint64(a.Points), 10),
			strconv.FormatUint(uint64(a.Retention()), 10),
		})
	}
	table.Render()
}

func runMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	from := fs.Uint("from", 0, "start of range (unix seconds)")
	until := fs.Uint("until", 0, "end of range (unix seconds); 0 means now")
	lock := fs.Bool("lock", true, "hold advisory locks while merging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: whisper-cli merge [flags] <src> <dst>")
	}
	return whisper.Merge(fs.Arg(0), fs.Arg(1), uint32(*from), uint32(*until), whisper.MergeOptions{Lock: *lock})
}

func runFill(args []string) error {
	fs := flag.NewFlagSet("fill", flag.ExitOnError)
	lock := fs.Bool("lock", true, "hold advisory locks while filling")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: whisper-cli fill [flags] <src> <dst>")
	}
	return whisper.Fill(fs.Arg(0), fs.Arg(1), whisper.MergeOptions{Lock: *lock})
}

func runDiff(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	ignoreEmpty := fs.Bool("ignore-empty", false, "exclude slots missing on either side")
	until := fs.Uint("until", 0, "end of range (unix seconds); 0 means now")
	lock := fs.Bool("lock", false, "hold advisory shared locks while comparing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: whisper-cli diff [flags] <a> <b>")
	}
	diffs, err := whisper.Diff(fs.Arg(0), fs.Arg(1), whisper.DiffOptions{
		IgnoreEmpty: *ignoreEmpty,
		UntilTime:   uint32(*until),
		Lock:        *lock,
	})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"archive", "timestamp", "value a", "value b"})
	total := 0
	for _, d := range diffs {
		for _, p := range d.Points {
			table.Append([]string{
				strconv.Itoa(d.ArchiveIndex),
				formatTime(p.Timestamp),
				diffCell(p.ValueA, p.KnownA),
				diffCell(p.ValueB, p.KnownB),
			})
			total++
		}
	}
	table.Render()
	fmt.Printf("%d differing point(s)\n", total)
	return nil
}

func diffCell(v float64, known bool) string {
	if !known {
		return "None"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func runResize(args []string) error {
	fs := flag.NewFlagSet("resize", flag.ExitOnError)
	retentions := fs.String("retentions", "", "new comma-separated retention spec")
	xff := fs.Float64("xff", -1, "x_files_factor override")
	agg := fs.String("aggregation", "", "aggregation method override")
	force := fs.Bool("force", false, "allow a retention shrink")
	aggregate := fs.Bool("aggregate", false, "replay through propagation instead of a best-effort copy")
	newFile := fs.String("newfile", "", "write to this path instead of replacing the original")
	noBackup := fs.Bool("nobackup", false, "delete the .bak file after a successful resize")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || *retentions == "" {
		return errors.New("usage: whisper-cli resize -retentions <spec> [flags] <path>")
	}
	archives, err := parseArchiveSpec(*retentions)
	if err != nil {
		return err
	}

	opts := whisper.ResizeOptions{
		Force:     *force,
		Aggregate: *aggregate,
		NewFile:   *newFile,
		NoBackup:  *noBackup,
	}
	if *xff >= 0 {
		v := float32(*xff)
		opts.XFilesFactor = &v
	}
	if *agg != "" {
		a, err := whisper.ParseAggregation(*agg)
		if err != nil {
			return err
		}
		opts.Aggregation = &a
	}
	return whisper.Resize(fs.Arg(0), archives, opts)
}

func runSetAggregation(args []string) error {
	fs := flag.NewFlagSet("set-aggregation", flag.ExitOnError)
	xff := fs.Float64("xff", -1, "also update x_files_factor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: whisper-cli set-aggregation [flags] <path> <method>")
	}
	method, err := whisper.ParseAggregation(fs.Arg(1))
	if err != nil {
		return err
	}
	var xffPtr *float32
	if *xff >= 0 {
		v := float32(*xff)
		xffPtr = &v
	}
	old, err := whisper.SetAggregationMethod(fs.Arg(0), method, xffPtr)
	if err != nil {
		return err
	}
	fmt.Printf("updated aggregation method: %s -> %s\n", old, method)
	return nil
}

func runEstimate(args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: whisper-cli estimate <retention-spec>")
	}
	archives, err := parseArchiveSpec(fs.Arg(0))
	if err != nil {
		return err
	}
	size, err := whisper.EstimateSize(archives)
	if err != nil {
		return err
	}
	fmt.Printf("%d bytes\n", size)
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: whisper-cli dump <path>")
	}
	dump, err := whisper.Dump(fs.Arg(0))
	if err != nil {
		return err
	}
	printInfo(dump.Info)
	for i, a := range dump.Archives {
		fmt.Printf("\narchive %d (step=%ds, points=%d):\n", i, a.Archive.SecondsPerPoint, a.Archive.Points)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"slot", "timestamp", "value"})
		for slot, p := range a.Points {
			if p.Empty() {
				table.Append([]string{strconv.Itoa(slot), "-", "-"})
				continue
			}
			table.Append([]string{strconv.Itoa(slot), formatTime(p.Timestamp), strconv.FormatFloat(p.Value, 'g', -1, 64)})
		}
		table.Render()
	}
	return nil
}

func runFindCorrupt(args []string) error {
	fs := flag.NewFlagSet("find-corrupt", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: whisper-cli find-corrupt <path>...")
	}
	reports := whisper.FindCorrupt(fs.Args())
	corrupt := 0
	for _, r := range reports {
		if r.Valid {
			continue
		}
		corrupt++
		fmt.Printf("%s: %v\n", r.Path, r.Err)
	}
	fmt.Printf("%d of %d file(s) failed validation\n", corrupt, len(reports))
	if corrupt > 0 {
		return fmt.Errorf("%d corrupt file(s) found", corrupt)
	}
	return nil
}

func formatTime(ts uint32) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"example.com/canwatch/internal/common"
	"example.com/canwatch/internal/detect"
	"example.com/canwatch/internal/profile"
	"example.com/canwatch/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "analyze":
		analyzeCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "profile":
		profileCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`canwatchctl %s (built %s) <command> [options]

Commands:
  analyze  --in <capture.log> [--profile <profile.yaml>] [--out <alerts.ndjson>] [--report <report.json>] [--pdf <report.pdf>] [--lang en|tr] [--metrics] [--progress]
  batch    --in <dir> [--profile <profile.yaml>] --out-dir <dir>
  report   --report <report.json> --pdf <report.pdf> [--lang en|tr] [--capture <capture.log>]
  profile  <show|check> [--file <profile.yaml>]
`, version, buildDate)
}

func loadProfileFlag(path string) (profile.Profile, error) {
	if strings.TrimSpace(path) == "" {
		return profile.Default(), nil
	}
	return profile.Load(path)
}

func analyzeCmd(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	in := fs.String("in", "", "input capture log")
	profilePath := fs.String("profile", "", "profile YAML (built-in default when omitted)")
	outAlerts := fs.String("out", "alerts.ndjson", "alerts output")
	outReport := fs.String("report", "report.json", "report output")
	outPDF := fs.String("pdf", "", "PDF report output (optional)")
	langFlag := fs.String("lang", "en", "report language")
	metricsFlag := fs.Bool("metrics", false, "print analysis throughput metrics")
	progressFlag := fs.Bool("progress", false, "display analysis progress updates")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lang: %v\n", err)
		os.Exit(1)
	}
	prof, err := loadProfileFlag(*profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", err)
		os.Exit(1)
	}
	engine, err := detect.NewEngine(prof.EngineConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}

	metrics := common.NewMetrics()
	stopProgress := func() {}
	if *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, time.Second)
	}
	rep, err := detect.AnalyzeCapture(engine, *in, metrics)
	stopProgress()
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
	if err := engine.WriteAlertsNDJSON(*outAlerts); err != nil {
		fmt.Fprintf(os.Stderr, "write alerts: %v\n", err)
		os.Exit(1)
	}
	if err := report.SaveReportJSON(rep, *outReport); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
	if *outPDF != "" {
		digest, _, err := common.Sha256OfFile(*in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "capture digest: %v\n", err)
			os.Exit(1)
		}
		opts := report.PDFOptions{
			Lang:          lang,
			CaptureName:   filepath.Base(*in),
			CaptureDigest: digest,
			Profile:       prof.ID,
		}
		if err := report.SaveReportPDF(rep, *outPDF, opts); err != nil {
			fmt.Fprintf(os.Stderr, "write pdf: %v\n", err)
			os.Exit(1)
		}
	}
	if *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Printf("Analyzed %d frames in %s (%.0f frames/s, %s)\n",
			snap.Frames, snap.Duration.Round(time.Millisecond), snap.FramesPerSecond(), common.FormatBytes(snap.Bytes))
	}
	printSummary(rep)
	if !rep.Summary.Pass {
		os.Exit(3)
	}
}

func printSummary(rep detect.Report) {
	fmt.Printf("frames=%d alerts=%d errors=%d warnings=%d pass=%v\n",
		rep.Summary.Frames, rep.Summary.Total, rep.Summary.Errors, rep.Summary.Warnings, rep.Summary.Pass)
	kinds := make([]string, 0, len(rep.Counts))
	for kind := range rep.Counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("  %s: %d\n", kind, rep.Counts[detect.Kind(kind)])
	}
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	in := fs.String("in", "", "directory of capture logs")
	profilePath := fs.String("profile", "", "profile YAML (built-in default when omitted)")
	outDir := fs.String("out-dir", "", "output directory")
	fs.Parse(args)

	if *in == "" || *outDir == "" {
		fmt.Println("required: --in and --out-dir")
		os.Exit(1)
	}
	prof, err := loadProfileFlag(*profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "out-dir: %v\n", err)
		os.Exit(1)
	}
	entries, err := os.ReadDir(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read dir: %v\n", err)
		os.Exit(1)
	}
	type result struct {
		name     string
		frames   int
		alerts   int
		errors   int
		warnings int
		pass     bool
		err      error
	}
	var results []result
	failed := false
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		capturePath := filepath.Join(*in, entry.Name())
		base := strings.TrimSuffix(entry.Name(), ".log")
		engine, err := detect.NewEngine(prof.EngineConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "engine: %v\n", err)
			os.Exit(1)
		}
		rep, err := detect.AnalyzeCapture(engine, capturePath, nil)
		if err != nil {
			results = append(results, result{name: entry.Name(), err: err})
			failed = true
			continue
		}
		if err := engine.WriteAlertsNDJSON(filepath.Join(*outDir, base+".alerts.ndjson")); err != nil {
			fmt.Fprintf(os.Stderr, "write alerts for %s: %v\n", entry.Name(), err)
			os.Exit(1)
		}
		if err := report.SaveReportJSON(rep, filepath.Join(*outDir, base+".report.json")); err != nil {
			fmt.Fprintf(os.Stderr, "write report for %s: %v\n", entry.Name(), err)
			os.Exit(1)
		}
		if !rep.Summary.Pass {
			failed = true
		}
		results = append(results, result{
			name:     entry.Name(),
			frames:   rep.Summary.Frames,
			alerts:   rep.Summary.Total,
			errors:   rep.Summary.Errors,
			warnings: rep.Summary.Warnings,
			pass:     rep.Summary.Pass,
		})
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CAPTURE\tFRAMES\tALERTS\tERRORS\tWARNINGS\tRESULT")
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\tERROR: %v\n", r.name, r.err)
			continue
		}
		verdict := "PASS"
		if !r.pass {
			verdict = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", r.name, r.frames, r.alerts, r.errors, r.warnings, verdict)
	}
	tw.Flush()
	if failed {
		os.Exit(3)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	reportPath := fs.String("report", "", "analysis report JSON")
	pdfPath := fs.String("pdf", "report.pdf", "PDF output")
	langFlag := fs.String("lang", "en", "report language")
	capturePath := fs.String("capture", "", "capture log to fingerprint in the PDF (optional)")
	fs.Parse(args)

	if *reportPath == "" {
		fmt.Println("required: --report")
		os.Exit(1)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lang: %v\n", err)
		os.Exit(1)
	}
	rep, err := report.LoadReportJSON(*reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load report: %v\n", err)
		os.Exit(1)
	}
	opts := report.PDFOptions{Lang: lang}
	if *capturePath != "" {
		digest, _, err := common.Sha256OfFile(*capturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "capture digest: %v\n", err)
			os.Exit(1)
		}
		opts.CaptureName = filepath.Base(*capturePath)
		opts.CaptureDigest = digest
	}
	if err := report.SaveReportPDF(rep, *pdfPath, opts); err != nil {
		fmt.Fprintf(os.Stderr, "write pdf: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *pdfPath)
}

func profileCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	sub := args[0]
	fs := flag.NewFlagSet("profile "+sub, flag.ExitOnError)
	file := fs.String("file", "", "profile YAML (built-in default when omitted)")
	fs.Parse(args[1:])

	switch sub {
	case "show":
		prof, err := loadProfileFlag(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "profile: %v\n", err)
			os.Exit(1)
		}
		out, err := prof.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
	case "check":
		if *file == "" {
			fmt.Println("required: --file")
			os.Exit(1)
		}
		if _, err := profile.Load(*file); err != nil {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s: ok\n", *file)
	default:
		usage()
		os.Exit(1)
	}
}

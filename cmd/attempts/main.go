package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/stemsi/exstem-mock/internal/attempt"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/database"
	"github.com/stemsi/exstem-mock/internal/event"
	"github.com/stemsi/exstem-mock/internal/logger"
	"github.com/stemsi/exstem-mock/internal/review"
	"github.com/stemsi/exstem-mock/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		examType string
		yes      bool
	)
	flag.StringVar(&examType, "exam", "", "Only list attempts of this exam type")
	flag.BoolVar(&yes, "y", false, "Delete without asking")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	cfg := config.Load()
	// Logs go to stderr so stdout stays scriptable.
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	kvStore, closeStore, err := database.OpenKV(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open attempt store")
	}
	defer closeStore()

	svc := service.NewAttemptService(
		attempt.NewStore(kvStore, cfg.AttemptNamespace, cfg.MaxStoredAttempts, log),
		event.Nop{},
		log,
	)

	switch args[0] {
	case "list":
		err = list(ctx, os.Stdout, svc, examType)
	case "stats":
		err = stats(ctx, os.Stdout, svc)
	case "show":
		err = withID(args, func(id string) error { return show(ctx, os.Stdout, svc, id) })
	case "review":
		filter := review.FilterAll
		if len(args) > 2 {
			if filter, err = review.ParseFilter(args[2]); err != nil {
				break
			}
		}
		err = withID(args, func(id string) error { return reviewAttempt(ctx, os.Stdout, svc, id, filter) })
	case "delete":
		err = withID(args, func(id string) error {
			if !yes && !confirm(fmt.Sprintf("Delete attempt %s?", id)) {
				fmt.Println("Aborted")
				return nil
			}
			if err := svc.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", id)
			return nil
		})
	default:
		printUsage()
		os.Exit(2)
	}

	if errors.Is(err, attempt.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "Error: attempt not found")
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("Command failed")
	}
}

func withID(args []string, fn func(id string) error) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires an attempt id", args[0])
	}
	return fn(args[1])
}

func list(ctx context.Context, w io.Writer, svc *service.AttemptService, examType string) error {
	all, err := svc.List(ctx, examType)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(w, "No attempts stored")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXAM\tVARIANT\tDATE\tSCORE\tPCT\tPERCENTILE")
	for _, a := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f/%.0f\t%.1f%%\t%.2f\n",
			a.ID, a.ExamType, a.Variant, a.CreatedAt.Local().Format("2006-01-02 15:04"),
			a.Result.RawScore, a.Result.MaxScore, a.Result.Percentage, a.Result.EstimatedPercentile)
	}
	return tw.Flush()
}

func stats(ctx context.Context, w io.Writer, svc *service.AttemptService) error {
	all, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXAM\tATTEMPTS\tBEST\tAVERAGE\tBEST PERCENTILE")
	for _, s := range all {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.1f%%\t%.2f\n",
			s.ExamType, s.Attempts, s.BestPercentage, s.AveragePercentage, s.BestPercentile)
	}
	return tw.Flush()
}

func show(ctx context.Context, w io.Writer, svc *service.AttemptService, id string) error {
	a, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	r := a.Result
	fmt.Fprintf(w, "Attempt     %s\n", a.ID)
	fmt.Fprintf(w, "Exam        %s (%s)\n", a.ExamType, a.Variant)
	fmt.Fprintf(w, "Taken       %s, %s spent\n", a.CreatedAt.Local().Format(time.RFC1123), time.Duration(a.TimeSpentSeconds)*time.Second)
	fmt.Fprintf(w, "Submitted   %s\n", a.SubmitReason)
	fmt.Fprintf(w, "Score       %.0f / %.0f (%.1f%%)\n", r.RawScore, r.MaxScore, r.Percentage)
	fmt.Fprintf(w, "Percentile  %.2f\n", r.EstimatedPercentile)
	fmt.Fprintf(w, "Answers     %d correct, %d incorrect, %d unanswered\n", r.Correct, r.Incorrect, r.Unanswered)
	return nil
}

func reviewAttempt(ctx context.Context, w io.Writer, svc *service.AttemptService, id string, f review.Filter) error {
	rv, err := svc.Review(ctx, id, f)
	if err != nil {
		return err
	}
	width := termWidth()
	for _, it := range rv.Items {
		mark := ""
		if it.Flagged {
			mark = " [flagged]"
		}
		fmt.Fprintf(w, "Q%d %s%s\n", it.Index+1, it.Outcome, mark)
		fmt.Fprintf(w, "  %s\n", truncate(it.Question.Prompt, width-2))
		for i, opt := range it.Question.Options {
			prefix := "   "
			switch {
			case i == it.Question.CorrectOptionIndex:
				prefix = " * "
			case it.Selected != nil && *it.Selected == i:
				prefix = " x "
			}
			fmt.Fprintf(w, "%s%s\n", prefix, truncate(opt, width-3))
		}
	}
	if len(rv.Items) == 0 {
		fmt.Fprintf(w, "No %s questions\n", f)
	}
	return nil
}

// termWidth returns the stdout column count, or 100 when not a terminal.
func termWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 100
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w < 20 {
		return 100
	}
	return w
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printUsage() {
	fmt.Println("Usage: attempts [flags] <command>")
	fmt.Println("Commands:")
	fmt.Println("  list                       List stored attempts, most recent first")
	fmt.Println("  stats                      Per-exam best and average")
	fmt.Println("  show <id>                  Show one attempt's result")
	fmt.Println("  review <id> [filter]       Walk through questions (all|correct|incorrect|unanswered)")
	fmt.Println("  delete <id>                Delete an attempt")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"flagwatch/backend/internal/analysis"
	"flagwatch/backend/internal/app"
	"flagwatch/backend/internal/commands"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/logging"
	"flagwatch/backend/internal/rules"
	"flagwatch/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

const usage = `Usage: admin <command> [args]

  case <user_id> [--hi|--med|--low] [--match text] [--limit n] [--after date] [--before date]
  delcase <user_id>
  archive <user_id>
  flagged
  topflags [n]
  wl|bl|ignore [add|remove <value>]
  classify <text>`

func main() {
	// Only warnings, so store logs stay out of the command output.
	logger := logging.New("warn", "text")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	stores, err := app.OpenStores(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open stores")
	}
	defer stores.Close()

	command, args := os.Args[1], os.Args[2:]
	if err := runCommand(cfg, stores, command, args, logger); err != nil {
		stores.Close()
		logger.WithError(err).Fatalf("%s failed", command)
	}
}

func runCommand(cfg *config.Config, s *app.Stores, command string, args []string, logger *logrus.Logger) error {
	switch command {
	case "case":
		if len(args) < 1 {
			return exitUsage("admin case <user_id> [filters]")
		}
		return showCase(s.Cases, args[0], args[1:])
	case "delcase":
		if len(args) != 1 {
			return exitUsage("admin delcase <user_id>")
		}
		if err := s.Cases.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Case for %s has been deleted.\n", args[0])
	case "archive":
		if len(args) != 1 {
			return exitUsage("admin archive <user_id>")
		}
		if err := s.Cases.Archive(args[0]); err != nil {
			return err
		}
		fmt.Printf("Case for %s has been archived.\n", args[0])
	case "flagged":
		return listFlagged(s.Cases)
	case "topflags":
		n := config.TopFlagsLimit
		if len(args) > 0 {
			var err error
			n, err = strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return exitUsage("admin topflags [n]")
			}
		}
		return topFlags(s.Cases, n)
	case "wl":
		return editSet(s.Watchlist, "watchlist", args)
	case "bl":
		return editSet(s.Blacklist, "blacklist", args)
	case "ignore":
		return editSet(s.Ignored, "ignored communities", args)
	case "classify":
		if len(args) == 0 {
			return exitUsage("admin classify <text>")
		}
		return classify(cfg, s.Blacklist, strings.Join(args, " "), logger)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
	return nil
}

func exitUsage(line string) error {
	fmt.Println("Usage: " + line)
	os.Exit(1)
	return nil
}

func showCase(cases storage.CaseLedger, userID string, flags []string) error {
	filter, err := commands.ParseCaseFilter(flags)
	if err != nil {
		return err
	}
	events, archived, err := cases.Lookup(userID)
	if err != nil {
		return err
	}
	if archived {
		fmt.Printf("Showing the archived case for %s.\n\n", userID)
	}
	events = filter.Apply(events)
	if len(events) == 0 {
		fmt.Println("No entries match the filter.")
		return nil
	}
	for _, ev := range events {
		fmt.Print(commands.FormatCaseEntry(ev))
	}
	return nil
}

func listFlagged(cases storage.CaseLedger) error {
	summaries, err := cases.Summaries(false)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No flagged users.")
		return nil
	}
	for _, c := range summaries {
		fmt.Printf("%s (%s) - %d flags\n", c.DisplayName, c.AuthorID, c.Count)
	}
	return nil
}

func topFlags(cases storage.CaseLedger, n int) error {
	summaries, err := cases.Summaries(false)
	if err != nil {
		return err
	}
	for i, c := range storage.TopByCount(summaries, n) {
		fmt.Printf("#%d: %s (%s) - %d flags\n", i+1, c.DisplayName, c.AuthorID, c.Count)
	}
	return nil
}

func editSet(set storage.SetStore, name string, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		values, err := set.List()
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d):\n", name, len(values))
		for _, v := range values {
			fmt.Println("  " + v)
		}
		return nil
	}
	if len(args) < 2 {
		return exitUsage("admin wl|bl|ignore [list|add|remove <value>]")
	}
	value := strings.Join(args[1:], " ")
	switch args[0] {
	case "add":
		added, err := set.Add(value)
		if err != nil {
			return err
		}
		if !added {
			fmt.Printf("%q is already on the %s.\n", value, name)
			return nil
		}
		fmt.Printf("Added %q to the %s.\n", value, name)
	case "remove":
		removed, err := set.Remove(value)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("%q is not on the %s.\n", value, name)
			return nil
		}
		fmt.Printf("Removed %q from the %s.\n", value, name)
	default:
		return exitUsage("admin wl|bl|ignore [list|add|remove <value>]")
	}
	return nil
}

func classify(cfg *config.Config, blacklist storage.SetStore, text string, logger *logrus.Logger) error {
	ruleStore, err := rules.NewStore(cfg.RulesFile, logger)
	if err != nil {
		return err
	}
	c := analysis.NewClassifier(ruleStore, blacklist, analysis.BlacklistMode(cfg.BlacklistMode), logger)
	v := c.Classify(text)
	if !v.Flagged() {
		fmt.Println("Clean.")
		return nil
	}
	fmt.Printf("Matched: %s\nRisk: %s\n", strings.Join(v.Matched, ", "), strings.ToUpper(string(v.Risk)))
	return nil
}

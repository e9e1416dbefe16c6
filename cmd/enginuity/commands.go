package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pantheonai/enginuity/internal/feedback"
	"github.com/pantheonai/enginuity/internal/ingest"
	"github.com/pantheonai/enginuity/internal/parser"
	"github.com/pantheonai/enginuity/internal/retrieval"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [path|url]",
	Short: "Ingest documents into the knowledge base",
	Long: `Ingest documents into the knowledge base.

With an argument, ingests that file, directory or URL and exits.
Without arguments, enters an interactive loop prompting for paths
until "quit".

Examples:
  enginuity ingest ./notes.pdf
  enginuity ingest ./docs/
  enginuity ingest https://example.com/article.html
  enginuity ingest`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.close()

		if len(args) == 1 {
			return ingestOne(cmd, a, args[0])
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Fprint(os.Stderr, "path to ingest (or 'quit'): ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if strings.EqualFold(input, "quit") {
				return nil
			}
			if err := ingestOne(cmd, a, input); err != nil {
				printError("%v", err)
			}
		}
	},
}

func ingestOne(cmd *cobra.Command, a *app, target string) error {
	ctx := cmd.Context()

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		res, err := a.pipeline.IngestURL(ctx, target)
		if err != nil {
			return err
		}
		reportIngest(res)
		return nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("reading %s: %w", target, err)
	}
	if info.IsDir() {
		batch, err := a.pipeline.IngestDir(ctx, target)
		if err != nil {
			return err
		}
		for i := range batch.Files {
			reportIngest(&batch.Files[i])
		}
		for _, f := range batch.FilesFailed {
			printError("%s: %v", f.Source, f.Err)
		}
		if len(batch.FilesFailed) > 0 {
			printWarning("Ingested %d of %d files", len(batch.Files), len(batch.Files)+len(batch.FilesFailed))
		} else {
			printSuccess("Ingested %d files", len(batch.Files))
		}
		return nil
	}

	if !parser.Supported(target) {
		return fmt.Errorf("unsupported file type: %s", target)
	}
	res, err := a.pipeline.IngestFile(ctx, target)
	if err != nil {
		return err
	}
	reportIngest(res)
	return nil
}

func reportIngest(res *ingest.FileResult) {
	printSuccess("%s: %d chunks stored, %d duplicates, %d failed",
		res.Source, res.ChunksStored, res.ChunksDupes, res.ChunksFailed)
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question grounded in the ingested documents",
	Long: `Ask a question grounded in the ingested documents.

With an argument, answers once and exits. Without arguments, enters an
interactive loop prompting for questions until "quit". After each answer
you can rate it (yes/no/skip).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.close()

		scanner := bufio.NewScanner(os.Stdin)
		if len(args) > 0 {
			return askOnce(cmd, a, strings.Join(args, " "), scanner)
		}

		for {
			fmt.Fprint(os.Stderr, "question (or 'quit'): ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			if strings.EqualFold(question, "quit") {
				return nil
			}
			if err := askOnce(cmd, a, question, scanner); err != nil {
				printError("%v", err)
			}
		}
	},
}

func askOnce(cmd *cobra.Command, a *app, question string, scanner *bufio.Scanner) error {
	ctx := cmd.Context()

	chunks, retrievalErr := a.retriever.Retrieve(ctx, question, a.cfg.Retrieval.TopK, a.cfg.Metric())
	result, err := a.synthesizer.Answer(ctx, question, chunks, retrievalErr)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(result.Answer)
	fmt.Println()

	if result.Refused {
		return nil
	}

	printStatus("Model", "%s", result.ModelTier)
	printStatus("Sources", "%d chunks", len(result.Sources))

	id := a.recorder.Record(question, result.Answer, result.ModelTier, result.PromptTokens)

	fmt.Fprint(os.Stderr, "Was this answer helpful? (yes/no/skip): ")
	if !scanner.Scan() {
		return scanner.Err()
	}
	a.recorder.Judge(id, feedback.ParseJudgment(scanner.Text()))
	return nil
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		metricName, _ := cmd.Flags().GetString("metric")

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.close()

		metric := a.cfg.Metric()
		if metricName != "" {
			metric, err = retrieval.ParseMetric(metricName)
			if err != nil {
				return err
			}
		}

		chunks, err := a.retriever.Retrieve(cmd.Context(), query, limit, metric)
		if errors.Is(err, retrieval.ErrNoContext) {
			fmt.Println("No results found.")
			return nil
		}
		if err != nil {
			return err
		}

		for i, c := range chunks {
			fmt.Printf("\n%s [distance: %.4f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), c.Distance)
			text := c.Text
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", text)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
	searchCmd.Flags().String("metric", "", "distance metric (cosine, euclidean, inner)")
}

// --- documents ---

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		docs, err := a.store.ListDocuments(limit)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No documents found.")
			return nil
		}

		for _, d := range docs {
			title := d.Title
			if len(title) > 60 {
				title = title[:60] + "..."
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, d.ID[:8]),
				d.CreatedAt.Format("2006-01-02 15:04"),
				title,
			)
		}
		return nil
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.DeleteDocument(args[0]); err != nil {
			return err
		}
		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

func init() {
	documentsListCmd.Flags().Int("limit", 20, "maximum number of documents to list")
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		docs, err := a.store.CountDocuments()
		if err != nil {
			return err
		}
		chunks, err := a.chunks.CountChunks()
		if err != nil {
			return err
		}
		fb, err := a.store.CountFeedback()
		if err != nil {
			return err
		}
		dim, err := a.store.Dimension()
		if err != nil {
			return err
		}

		printStatus("Data dir", "%s", a.cfg.Storage.DataDir)
		printStatus("Documents", "%d", docs)
		printStatus("Chunks", "%d", chunks)
		printStatus("Feedback", "%d entries", fb)
		printStatus("Embedding", "%s (%d dims)", a.cfg.Embedding.Model, dim)
		printStatus("Metric", "%s", a.cfg.Retrieval.Metric)
		return nil
	},
}

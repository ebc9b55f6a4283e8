package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scholium/zotero-go/internal/config"
	"github.com/scholium/zotero-go/internal/doidx"
	"github.com/scholium/zotero-go/s2"
)

func newS2Client() (*s2.Client, error) {
	_ = godotenv.Load()
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	opts := []s2.ClientOption{}
	if cfg.S2APIKey != "" {
		opts = append(opts, s2.WithAPIKey(cfg.S2APIKey))
	}
	return s2.NewClient(opts...), nil
}

// annotatedPaper is an s2.Paper plus whether the local DOI index already
// holds it.
type annotatedPaper struct {
	s2.Paper
	InLibrary bool `json:"inLibrary"`
}

// annotatedEdge is a citation edge annotated like annotatedPaper.
type annotatedEdge struct {
	s2.CitationResult
	InLibrary bool `json:"inLibrary"`
}

// openIndexIfBuilt opens the DOI index when one exists on disk. Without an
// index the commands still run; results simply carry no library markers.
func openIndexIfBuilt() *doidx.Index {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return nil
	}
	path := cfg.ResolvedIndexPath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ix, err := doidx.Open(path)
	if err != nil {
		return nil
	}
	return ix
}

// paperInLibrary reports whether the paper's DOI resolves in the index.
func paperInLibrary(ctx context.Context, ix *doidx.Index, p *s2.Paper) bool {
	if ix == nil || p == nil || p.ExternalIDs.DOI == "" {
		return false
	}
	key, err := ix.Lookup(ctx, p.ExternalIDs.DOI)
	return err == nil && key != ""
}

// markPapers pairs each paper with its library membership.
func markPapers(ctx context.Context, ix *doidx.Index, papers []s2.Paper) []annotatedPaper {
	out := make([]annotatedPaper, len(papers))
	for i := range papers {
		out[i] = annotatedPaper{
			Paper:     papers[i],
			InLibrary: paperInLibrary(ctx, ix, &papers[i]),
		}
	}
	return out
}

// markEdges annotates the paper carried by each edge: citingPaper for
// citation listings, citedPaper for reference listings.
func markEdges(ctx context.Context, ix *doidx.Index, edges []s2.CitationResult) []annotatedEdge {
	out := make([]annotatedEdge, len(edges))
	for i, edge := range edges {
		paper := edge.CitingPaper
		if paper == nil {
			paper = edge.CitedPaper
		}
		out[i] = annotatedEdge{
			CitationResult: edge,
			InLibrary:      paperInLibrary(ctx, ix, paper),
		}
	}
	return out
}

func printAnnotatedPapers(papers []annotatedPaper) error {
	if humanOutput {
		for _, p := range papers {
			marker := " "
			if p.InLibrary {
				marker = "*"
			}
			outputHuman("%s %s  %s\n", marker, p.PaperID, truncate(p.Title, 70))
		}
		return nil
	}
	return outputJSON(papers)
}

var s2Cmd = &cobra.Command{
	Use:   "s2",
	Short: "Semantic Scholar lookups",
	Long: `Semantic Scholar lookups for citation metadata.

When a local DOI index has been built (zot index build), each result is
marked with whether its DOI already resolves to a library item.`,
}

var s2PaperCmd = &cobra.Command{
	Use:   "paper ID",
	Short: "Fetch a paper by S2 ID, DOI:..., ARXIV:... or PMID:...",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newS2Client()
		if err != nil {
			return err
		}
		paper, err := client.Paper(cmd.Context(), args[0])
		if err != nil {
			exitS2Error(err)
		}
		ix := openIndexIfBuilt()
		if ix != nil {
			defer ix.Close()
		}
		return outputJSON(annotatedPaper{
			Paper:     *paper,
			InLibrary: paperInLibrary(cmd.Context(), ix, paper),
		})
	},
}

var s2SearchLimit int

var s2SearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search papers by keyword relevance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newS2Client()
		if err != nil {
			return err
		}
		resp, err := client.SearchPapers(cmd.Context(), args[0], s2SearchLimit)
		if err != nil {
			exitS2Error(err)
		}
		ix := openIndexIfBuilt()
		if ix != nil {
			defer ix.Close()
		}
		papers := markPapers(cmd.Context(), ix, resp.Data)
		if humanOutput {
			return printAnnotatedPapers(papers)
		}
		return outputJSON(map[string]any{
			"total":  resp.Total,
			"offset": resp.Offset,
			"data":   papers,
		})
	},
}

func runS2Edges(cmd *cobra.Command, id string, fetch func(context.Context, string, int, int) (*s2.CitationsResponse, error)) error {
	resp, err := fetch(cmd.Context(), id, 0, 0)
	if err != nil {
		exitS2Error(err)
	}
	ix := openIndexIfBuilt()
	if ix != nil {
		defer ix.Close()
	}
	edges := markEdges(cmd.Context(), ix, resp.Data)
	if humanOutput {
		papers := make([]annotatedPaper, 0, len(edges))
		for _, edge := range edges {
			paper := edge.CitingPaper
			if paper == nil {
				paper = edge.CitedPaper
			}
			if paper == nil {
				continue
			}
			papers = append(papers, annotatedPaper{Paper: *paper, InLibrary: edge.InLibrary})
		}
		return printAnnotatedPapers(papers)
	}
	return outputJSON(map[string]any{
		"offset": resp.Offset,
		"data":   edges,
	})
}

var s2CitationsCmd = &cobra.Command{
	Use:   "citations ID",
	Short: "List papers citing the given paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newS2Client()
		if err != nil {
			return err
		}
		return runS2Edges(cmd, args[0], client.Citations)
	},
}

var s2ReferencesCmd = &cobra.Command{
	Use:   "references ID",
	Short: "List papers the given paper cites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newS2Client()
		if err != nil {
			return err
		}
		return runS2Edges(cmd, args[0], client.References)
	},
}

func init() {
	s2SearchCmd.Flags().IntVar(&s2SearchLimit, "limit", 20, "Result limit")
	s2Cmd.AddCommand(s2PaperCmd, s2SearchCmd, s2CitationsCmd, s2ReferencesCmd)
	rootCmd.AddCommand(s2Cmd)
}

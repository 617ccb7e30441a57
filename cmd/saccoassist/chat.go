package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/saccoassist/pkg/chat"
	"github.com/xhad/saccoassist/pkg/summary"
)

var (
	chatNoContext bool
	chatRefresh   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions from the terminal",
	Long: `Interactive chat over the stored documents and website snapshot.

Commands:
  /refresh     re-fetch the website snapshot
  /summaries   print the cached summary of every stored document
  /new         start a new conversation
  exit         quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, interactiveLogger(logger))
		if err != nil {
			return err
		}
		defer a.Close()

		if chatRefresh && a.website != nil {
			refreshWebsite(cmd, a)
		}

		color.Cyan("\nChat with the SOYOSOYO SACCO assistant (type 'exit' to quit)")

		scanner := bufio.NewScanner(os.Stdin)
		userPrompt := color.New(color.FgGreen).PrintfFunc()
		assistantPrompt := color.New(color.FgCyan).PrintfFunc()

		var conversationID string
		for {
			userPrompt("\nYou: ")
			if !scanner.Scan() {
				break
			}

			query := strings.TrimSpace(scanner.Text())
			switch strings.ToLower(query) {
			case "":
				continue
			case "exit", "quit":
				return nil
			case "/new":
				conversationID = ""
				color.Blue("Started a new conversation")
				continue
			case "/refresh":
				if a.website == nil {
					color.Yellow("Website content is disabled")
				} else {
					refreshWebsite(cmd, a)
				}
				continue
			case "/summaries":
				printSummaries(cmd, a)
				continue
			}

			var resp *chat.Response
			withSpinner(" Thinking...", func() {
				resp, err = a.chat.Chat(ctx, chat.Request{
					Message:        query,
					ConversationID: conversationID,
					IncludeContext: !chatNoContext,
				})
			})
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}

			conversationID = resp.ConversationID
			assistantPrompt("\nAssistant: %s\n", resp.Response)
		}

		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatNoContext, "no-context", false, "answer without document or website context")
	chatCmd.Flags().BoolVar(&chatRefresh, "refresh", false, "fetch the website snapshot before chatting")
}

func refreshWebsite(cmd *cobra.Command, a *app) {
	var msg string
	var ok bool
	withSpinner(" Fetching website...", func() {
		res := a.website.Refresh(cmd.Context(), "")
		msg, ok = res.Message, res.Success
	})
	if ok {
		color.Green("✓ %s", msg)
	} else {
		color.Red("✗ %s", msg)
	}
}

func printSummaries(cmd *cobra.Command, a *app) {
	ctx := cmd.Context()
	docs, err := a.ingest.List(ctx)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}
	if len(docs) == 0 {
		color.Yellow("No documents stored")
		return
	}

	files := make([]summary.File, 0, len(docs))
	for _, d := range docs {
		if d.Processed {
			files = append(files, summary.File{Name: d.FileName, Content: d.Text()})
		}
	}

	var out string
	withSpinner(" Summarizing documents...", func() {
		out, err = a.summaries.BuildContext(ctx, files)
	})
	if err != nil {
		color.Red("Error: %v", err)
		return
	}
	fmt.Println(out)
}

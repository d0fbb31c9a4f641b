package cli

import (
	"bufio"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/libris/internal/adapters/driving/tui"
	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/logger"
)

var (
	chatDoc         string
	chatSession     string
	chatNoRetrieval bool
	chatPlain       bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about your books",
	Long: `Starts a conversation. Messages that look like questions about the books
are answered from retrieved passages; other messages go straight to the LLM.

On a terminal this opens the interactive chat view:
  Enter    - Send
  Ctrl+R   - Toggle retrieval
  Ctrl+S   - Toggle sources
  Ctrl+N   - New session
  PgUp/Dn  - Scroll
  Esc      - Quit

When stdin is not a terminal (or with --plain) each input line is one message
and each reply is printed on stdout.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatDoc, "doc", "", "restrict retrieval to one document id")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "resume an existing session")
	chatCmd.Flags().BoolVar(&chatNoRetrieval, "no-retrieval", false, "never route messages through retrieval")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "line mode even on a terminal")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	if !chatPlain && isTerminal(cmd) {
		return runChatTUI(cmd)
	}
	return runChatLines(cmd)
}

func isTerminal(cmd *cobra.Command) bool {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return false
	}
	out, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(out.Fd()))
}

func runChatTUI(cmd *cobra.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in chat: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("chat crashed: %v", r)
		}
	}()

	app, err := tui.NewApp(&tui.Ports{RAG: ragService},
		tui.WithDocument(chatDoc), tui.WithSession(chatSession))
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat error: %w", err)
	}

	endChatSession(app.SessionID())
	return nil
}

func runChatLines(cmd *cobra.Command) error {
	sessionID := chatSession
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}

		reply, err := ragService.Chat(cmd.Context(), domain.ChatRequest{
			SessionID:    sessionID,
			DocumentID:   chatDoc,
			Message:      msg,
			UseRetrieval: !chatNoRetrieval,
		})
		if err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		sessionID = reply.SessionID

		cmd.Println(reply.Reply)
		if reply.UsedRAG {
			logger.Debug("reply used %d passages, confidence %.2f", len(reply.Context), reply.Confidence)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	endChatSession(sessionID)
	return nil
}

// endChatSession discards sessions this invocation created.
func endChatSession(id string) {
	if id == "" || id == chatSession {
		return
	}
	if err := ragService.EndSession(id); err != nil {
		logger.Debug("ending session %s: %v", id, err)
	}
}

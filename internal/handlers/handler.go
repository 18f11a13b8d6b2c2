package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tti-balder/internal/prompt"
	"tti-balder/internal/telegram"
	"tti-balder/internal/widget"
)

// Messenger is the part of the Telegram client the bot uses.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb telegram.Keyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.Keyboard) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendPhoto(chatID int64, name string, data []byte, caption string) error
	SendTyping(chatID int64)
}

type Options struct {
	Telegram Messenger
	Widget   *widget.Service
	Logger   *slog.Logger
}

type Handler struct {
	tg     Messenger
	widget *widget.Service
	wizard *wizardStore
	logger *slog.Logger
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:     opts.Telegram,
		widget: opts.Widget,
		wizard: newWizardStore(),
		logger: logger,
	}
}

// PruneForms drops chat forms idle for longer than ttl.
func (h *Handler) PruneForms(now time.Time, ttl time.Duration) int {
	return h.wizard.Prune(now, ttl)
}

func sessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}
	if msg.Text != "" {
		return h.handleText(chatID, userID, msg.Text)
	}
	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"👕 Balder design studio\n\n"+
				"Describe a motif and I will draw it and show it on a t-shirt.\n\n"+
				"Commands:\n"+
				"/design <description> - start a design\n"+
				"/cart - add the current design to the cart\n"+
				"/reset - start over\n"+
				"/help - help",
		)
	case "help":
		return h.tg.SendText(chatID,
			"👕 Help\n\n"+
				"/design a fox in a forest - opens the design menu with that motif.\n"+
				"Pick style, mood, color, size and placement with the buttons, then press Generate.\n"+
				"Mockup shows the current design on the shirt again.\n"+
				"/cancel - stop waiting for text input.",
		)
	case "design":
		h.widget.Ensure(sessionID(chatID))
		subject := strings.TrimSpace(msg.CommandArguments())
		h.wizard.Update(chatID, userID, func(st *wizardState) {
			st.Menu = menuMain
			st.Awaiting = awaitNothing
			if subject != "" {
				st.Input.Subject = subject
			} else {
				st.Awaiting = awaitSubject
			}
		})
		if subject == "" {
			_ = h.tg.SendText(chatID, "✏️ Send a short description of your motif.")
		}
		return h.renderUI(chatID, userID, 0, false)
	case "cancel":
		h.wizard.Update(chatID, userID, func(st *wizardState) { st.Awaiting = awaitNothing })
		return h.tg.SendText(chatID, "OK.")
	case "reset":
		h.widget.Ensure(sessionID(chatID))
		if _, err := h.widget.Reset(sessionID(chatID)); err != nil {
			return h.tg.SendText(chatID, "❌ "+widget.UserMessage(err))
		}
		h.wizard.Reset(chatID, userID)
		return h.renderUI(chatID, userID, 0, false)
	case "cart":
		return h.addToCart(ctx, chatID)
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handleText(chatID, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	h.widget.Ensure(sessionID(chatID))
	h.wizard.Update(chatID, userID, func(st *wizardState) {
		switch st.Awaiting {
		case awaitTags:
			st.Input.Tags = prompt.ParseTags(text, st.Input.Tags)
		default:
			st.Input.Subject = text
		}
		st.Awaiting = awaitNothing
		st.Menu = menuMain
	})
	return h.renderUI(chatID, userID, 0, false)
}

func (h *Handler) generate(ctx context.Context, chatID, userID int64) error {
	st := h.wizard.Get(chatID, userID)

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, "🎨 Drawing your design, this can take up to a minute...")

	d, err := h.widget.Generate(ctx, sessionID(chatID), st.Input)
	if err != nil {
		h.logger.Warn("bot generation failed", "chat_id", chatID, "code", widget.Code(err), "err", err)
		return h.tg.SendText(chatID, "❌ "+widget.UserMessage(err))
	}

	return h.sendMockup(ctx, chatID, "✅ "+truncateLine(d.Prompt, 300))
}

func (h *Handler) sendMockup(ctx context.Context, chatID int64, caption string) error {
	png, err := h.widget.RenderMockup(ctx, sessionID(chatID))
	if err != nil {
		h.logger.Warn("bot mockup failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ "+widget.UserMessage(err))
	}
	return h.tg.SendPhoto(chatID, "mockup.png", png, caption)
}

func (h *Handler) addToCart(ctx context.Context, chatID int64) error {
	h.widget.Ensure(sessionID(chatID))
	res, err := h.widget.AddToCart(ctx, sessionID(chatID))
	if err != nil {
		return h.tg.SendText(chatID, "❌ "+widget.UserMessage(err))
	}
	if res.RedirectURL == "" {
		return h.tg.SendText(chatID, "🛒 The design was sent to the store.")
	}
	return h.tg.SendText(chatID, "🛒 Open this link to add the design to your cart:\n"+res.RedirectURL)
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}

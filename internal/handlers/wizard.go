package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tti-balder/internal/design"
	"tti-balder/internal/prompt"
	"tti-balder/internal/telegram"
	"tti-balder/internal/widget"
)

const callbackPrefix = "dz"

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, callbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.", true)
		return nil
	}

	action := parts[2]
	var arg string
	if len(parts) > 3 {
		arg = parts[3]
	}
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	sid := sessionID(chatID)
	h.widget.Ensure(sid)

	var actionErr error
	h.wizard.Update(chatID, ownerID, func(st *wizardState) {
		st.MessageID = msgID

		switch action {
		case "menu":
			st.Menu = arg
		case "style":
			st.Input.Style = arg
			st.Menu = menuMain
		case "mood":
			st.Input.Mood = arg
			st.Menu = menuMain
		case "subject":
			st.Awaiting = awaitSubject
		case "tags":
			st.Awaiting = awaitTags
		case "tags_clear":
			st.Input.Tags = nil
		case "close":
			st.Awaiting = awaitNothing
			st.Menu = menuMain
		}
	})

	switch action {
	case "color":
		_, actionErr = h.widget.SelectColor(sid, arg)
	case "size":
		_, actionErr = h.widget.SelectSize(sid, arg)
	case "place":
		_, actionErr = h.widget.SelectPlacement(sid, arg)
	case "blend":
		_, actionErr = h.widget.SelectBlend(sid, arg)
	case "reset":
		if _, actionErr = h.widget.Reset(sid); actionErr == nil {
			h.wizard.Reset(chatID, ownerID)
		}
	}
	switch action {
	case "color", "size", "place", "blend":
		h.wizard.Update(chatID, ownerID, func(st *wizardState) { st.Menu = menuMain })
	}
	if actionErr != nil {
		_ = h.tg.AnswerCallback(q.ID, widget.UserMessage(actionErr), true)
		return h.renderUI(chatID, ownerID, msgID, true)
	}

	switch action {
	case "subject":
		_ = h.tg.AnswerCallback(q.ID, "Send the description as a message.", false)
		_ = h.tg.SendText(chatID, "✏️ Send a short description of your motif (/cancel to stop).")
	case "tags":
		_ = h.tg.AnswerCallback(q.ID, "Send tags separated by commas.", false)
		_ = h.tg.SendText(chatID, "🏷 Send tags separated by commas, e.g. neon, retro (/cancel to stop).")
	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		if err := h.generate(ctx, chatID, ownerID); err != nil {
			return err
		}
	case "mockup":
		_ = h.tg.AnswerCallback(q.ID, "Rendering…", false)
		if err := h.sendMockup(ctx, chatID, ""); err != nil {
			return err
		}
	case "cart":
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		if err := h.addToCart(ctx, chatID); err != nil {
			return err
		}
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	}

	return h.renderUI(chatID, ownerID, msgID, true)
}

func (h *Handler) renderUI(chatID, userID int64, messageID int, edit bool) error {
	st := h.wizard.Get(chatID, userID)
	if messageID == 0 {
		messageID = st.MessageID
	}
	view, err := h.widget.Snapshot(sessionID(chatID))
	if err != nil {
		return h.tg.SendText(chatID, "❌ "+widget.UserMessage(err))
	}

	text := uiText(st, view)
	kb := uiKeyboard(userID, st, view)

	if edit && messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.wizard.Update(chatID, userID, func(st *wizardState) { st.MessageID = msgID })
	return nil
}

func uiText(st wizardState, v widget.View) string {
	subject := st.Input.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(not set)"
	}
	size := v.Selection.Size
	if size == "" {
		size = "(not selected)"
	}
	tags := "-"
	if len(st.Input.Tags) > 0 {
		tags = strings.Join(st.Input.Tags, ", ")
	}

	var b strings.Builder
	b.WriteString("👕 Design\n\n")
	b.WriteString("Motif: " + truncateLine(subject, 200) + "\n")
	b.WriteString("Style: " + optionName(prompt.Styles(), st.Input.Style) + "\n")
	b.WriteString("Mood: " + optionName(prompt.Moods(), st.Input.Mood) + "\n")
	b.WriteString("Tags: " + tags + "\n\n")
	b.WriteString("Color: " + v.Selection.Color + "\n")
	b.WriteString("Size: " + size + "\n")
	b.WriteString("Placement: " + v.Selection.Placement.Label() + "\n")
	b.WriteString("Blend: " + string(v.Selection.Blend) + "\n")
	b.WriteString(fmt.Sprintf("Designs: %d\n", len(v.Designs)))
	if v.Error != "" {
		b.WriteString("\nLast attempt: " + v.Error + "\n")
	}
	return b.String()
}

func optionName(opts []prompt.NamedOption, key string) string {
	for _, o := range opts {
		if o.Key == key {
			return o.Name
		}
	}
	return "-"
}

func uiKeyboard(ownerID int64, st wizardState, v widget.View) telegram.Keyboard {
	switch st.Menu {
	case menuStyle:
		return namedKeyboard(ownerID, "style", prompt.Styles(), st.Input.Style)
	case menuMood:
		return namedKeyboard(ownerID, "mood", prompt.Moods(), st.Input.Mood)
	case menuColor:
		return listKeyboard(ownerID, "color", v.Colors, v.Selection.Color)
	case menuSize:
		return listKeyboard(ownerID, "size", v.Sizes, v.Selection.Size)
	case menuPlacement:
		var opts []prompt.NamedOption
		for _, p := range design.Placements() {
			opts = append(opts, prompt.NamedOption{Key: string(p), Name: p.Label()})
		}
		return namedKeyboard(ownerID, "place", opts, string(v.Selection.Placement))
	case menuBlend:
		var keys []string
		for _, b := range design.BlendStyles() {
			keys = append(keys, string(b))
		}
		return listKeyboard(ownerID, "blend", keys, string(v.Selection.Blend))
	default:
		return mainKeyboard(ownerID, st, v)
	}
}

func mainKeyboard(ownerID int64, st wizardState, v widget.View) telegram.Keyboard {
	size := v.Selection.Size
	if size == "" {
		size = "?"
	}
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("✏️ Motif", cb(ownerID, "subject")),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🏷 Tags (%d)", len(st.Input.Tags)), cb(ownerID, "tags")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Style", cb(ownerID, "menu", menuStyle)),
			tgbotapi.NewInlineKeyboardButtonData("Mood", cb(ownerID, "menu", menuMood)),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Color: "+v.Selection.Color, cb(ownerID, "menu", menuColor)),
			tgbotapi.NewInlineKeyboardButtonData("Size: "+size, cb(ownerID, "menu", menuSize)),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Placement", cb(ownerID, "menu", menuPlacement)),
			tgbotapi.NewInlineKeyboardButtonData("Blend", cb(ownerID, "menu", menuBlend)),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb(ownerID, "generate")),
			tgbotapi.NewInlineKeyboardButtonData("👕 Mockup", cb(ownerID, "mockup")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🛒 Add to cart", cb(ownerID, "cart")),
		},
	}
	last := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
	}
	if len(st.Input.Tags) > 0 {
		last = append(last, tgbotapi.NewInlineKeyboardButtonData("Clear tags", cb(ownerID, "tags_clear")))
	}
	rows = append(rows, last)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func namedKeyboard(ownerID int64, action string, opts []prompt.NamedOption, current string) telegram.Keyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, opt := range opts {
		label := opt.Name
		if opt.Key == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, action, opt.Key)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", menuMain)),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func listKeyboard(ownerID int64, action string, keys []string, current string) telegram.Keyboard {
	opts := make([]prompt.NamedOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, prompt.NamedOption{Key: k, Name: k})
	}
	return namedKeyboard(ownerID, action, opts, current)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}

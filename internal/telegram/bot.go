package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/generation"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackCancel = "cancel"
	callbackRetry  = "retry"

	defaultPollInterval = 3 * time.Second
	contextBloatTokens  = 4000
)

// Coach is the plan-generation surface the bot drives.
type Coach interface {
	Start(ctx context.Context, userID string, input plan.Input) (generation.Status, error)
	Advance(ctx context.Context, userID string) (generation.Status, error)
	GetStatus(ctx context.Context, userID string) (*generation.Status, error)
	Cancel(ctx context.Context, userID string) bool
	GetResult(ctx context.Context, userID string) (*plan.Accumulated, error)
}

// Sessions persists which chat message shows a user's progress.
type Sessions interface {
	Save(ctx context.Context, s WatchSession) error
	Get(ctx context.Context, userID string) (*WatchSession, error)
	List(ctx context.Context) ([]WatchSession, error)
	Delete(ctx context.Context, userID string) error
	DeleteRun(ctx context.Context, userID, runID string) error
}

// sender is the part of *tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot turns Telegram commands into generation runs and keeps a progress
// message up to date while a run is in flight.
type Bot struct {
	api          sender
	cfg          *config.Config
	coach        Coach
	metricsStore *metrics.Store
	sessions     Sessions

	// PollInterval is how often watched runs are re-read.
	PollInterval time.Duration

	mu       sync.Mutex
	watching map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewBotAPI connects to Telegram and points it at the configured webhook.
func NewBotAPI(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Printf("Authorized on account %s", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)
	return api, nil
}

// NewBot wires the bot. metricsStore may be nil.
func NewBot(api sender, cfg *config.Config, coach Coach, metricsStore *metrics.Store, sessions Sessions) *Bot {
	return &Bot{
		api:          api,
		cfg:          cfg,
		coach:        coach,
		metricsStore: metricsStore,
		sessions:     sessions,
		PollInterval: defaultPollInterval,
		watching:     make(map[string]context.CancelFunc),
	}
}

// RegisterHandlers registers the webhook handler on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
}

func userKey(telegramID int64) string {
	return fmt.Sprintf("telegram:%d", telegramID)
}

func (b *Bot) isAllowed(id int64) bool {
	return id == b.cfg.AdminTelegramID || slices.Contains(b.cfg.TelegramAllowedUserIDs, id)
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Printf("Error parsing update: %v", err)
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	switch {
	case update.CallbackQuery != nil:
		if !b.isAllowed(update.CallbackQuery.From.ID) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		if !b.isAllowed(update.Message.From.ID) {
			log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
			return
		}
		go b.processMessage(update.Message)
	}
}

func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	return strings.ToLower(cmd), fields[1:]
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx := context.Background()
	chatID := msg.Chat.ID
	userID := userKey(msg.From.ID)

	cmd, args := splitCommand(msg.Text)
	switch cmd {
	case "plan":
		b.handlePlan(ctx, userID, chatID, args)
	case "status":
		b.handleStatus(ctx, userID, chatID)
	case "cancel":
		b.handleCancel(ctx, userID, chatID, 0)
	case "result":
		b.handleResult(ctx, userID, chatID)
	case "retry":
		b.handleRetry(ctx, userID, chatID, 0)
	case "metrics":
		if msg.From.ID != b.cfg.AdminTelegramID {
			b.send(chatID, "⛔ *Access Denied*: Admin only.", nil)
			return
		}
		b.handleMetricsCommand(ctx, chatID)
	default:
		b.send(chatID, helpText, nil)
	}
}

const helpText = "🏋️ *AI Fitness Coach*\n\n" +
	"/plan - generate a weekly training and meal plan\n" +
	"/status - show progress\n" +
	"/cancel - stop the current generation\n" +
	"/retry - resume a failed generation\n" +
	"/result - show your latest plan"

func (b *Bot) handlePlan(ctx context.Context, userID string, chatID int64, args []string) {
	if len(args) == 0 {
		b.send(chatID, planUsage, nil)
		return
	}
	input, err := parseInputArgs(args)
	if err != nil {
		b.send(chatID, fmt.Sprintf("❌ %s\n\n%s", escape(err.Error()), planUsage), nil)
		return
	}

	st, err := b.coach.Start(ctx, userID, input)
	var inputErr *plan.InputError
	if errors.As(err, &inputErr) {
		b.send(chatID, fmt.Sprintf("❌ Please check: *%s*\n\n%s", escape(strings.Join(inputErr.Fields, ", ")), planUsage), nil)
		return
	}
	if err != nil {
		log.Printf("Failed to start generation for %s: %v", userID, err)
		b.send(chatID, "❌ Could not start generation. Please try again later.", nil)
		return
	}

	b.watchFromNewMessage(ctx, userID, chatID, st)
}

func (b *Bot) handleStatus(ctx context.Context, userID string, chatID int64) {
	st, err := b.coach.GetStatus(ctx, userID)
	if err != nil {
		log.Printf("Failed to read status for %s: %v", userID, err)
		b.send(chatID, "❌ Could not read your status.", nil)
		return
	}
	if st == nil {
		b.send(chatID, "No plan generation yet. Send /plan to start one.", nil)
		return
	}
	b.send(chatID, formatStatus(st), keyboardFor(st))
}

// handleCancel cancels the run. messageID is the progress message to edit,
// or 0 to reply with a new message.
func (b *Bot) handleCancel(ctx context.Context, userID string, chatID int64, messageID int) {
	b.stopWatch(userID)
	if err := b.sessions.Delete(ctx, userID); err != nil {
		log.Printf("Failed to delete watch session for %s: %v", userID, err)
	}

	text := "Nothing to cancel."
	if b.coach.Cancel(ctx, userID) {
		text = "🛑 *Plan generation was cancelled.*"
	}
	if messageID != 0 {
		b.edit(chatID, messageID, text, nil)
		return
	}
	b.send(chatID, text, nil)
}

func (b *Bot) handleResult(ctx context.Context, userID string, chatID int64) {
	acc, err := b.coach.GetResult(ctx, userID)
	if err != nil {
		log.Printf("Failed to read result for %s: %v", userID, err)
		b.send(chatID, "❌ Could not read your plan.", nil)
		return
	}
	if acc == nil {
		b.send(chatID, "No finished plan yet. Send /status to check progress.", nil)
		return
	}
	b.sendResult(chatID, acc)
}

func (b *Bot) handleRetry(ctx context.Context, userID string, chatID int64, messageID int) {
	st, err := b.coach.GetStatus(ctx, userID)
	if err != nil {
		log.Printf("Failed to read status for %s: %v", userID, err)
		b.send(chatID, "❌ Could not read your status.", nil)
		return
	}
	if st == nil || st.Outcome != generation.OutcomeFailed {
		b.send(chatID, "Nothing to retry.", nil)
		return
	}

	if messageID != 0 {
		b.watchMessage(ctx, userID, chatID, messageID, *st)
	} else {
		b.watchFromNewMessage(ctx, userID, chatID, *st)
	}

	if _, err := b.coach.Advance(ctx, userID); err != nil {
		log.Printf("Retry for %s failed: %v", userID, err)
	}
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
	if query.Message == nil {
		return
	}

	ctx := context.Background()
	userID := userKey(query.From.ID)
	chatID := query.Message.Chat.ID
	switch query.Data {
	case callbackCancel:
		b.handleCancel(ctx, userID, chatID, query.Message.MessageID)
	case callbackRetry:
		b.handleRetry(ctx, userID, chatID, query.Message.MessageID)
	}
}

func (b *Bot) watchFromNewMessage(ctx context.Context, userID string, chatID int64, st generation.Status) {
	sent, err := b.send(chatID, formatStatus(&st), keyboardFor(&st))
	if err != nil {
		return
	}
	b.watchMessage(ctx, userID, chatID, sent.MessageID, st)
}

func (b *Bot) watchMessage(ctx context.Context, userID string, chatID int64, messageID int, st generation.Status) {
	session := WatchSession{UserID: userID, ChatID: chatID, MessageID: messageID, RunID: st.RunID}
	if err := b.sessions.Save(ctx, session); err != nil {
		log.Printf("Failed to save watch session for %s: %v", userID, err)
	}
	b.watch(session, formatStatus(&st), st.Version)
}

// ResumeWatches restarts progress updates for sessions saved before a restart.
func (b *Bot) ResumeWatches(ctx context.Context) (int, error) {
	sessions, err := b.sessions.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list watch sessions: %w", err)
	}

	resumed := 0
	for _, s := range sessions {
		st, err := b.coach.GetStatus(ctx, s.UserID)
		if err != nil {
			log.Printf("Failed to read status for %s: %v", s.UserID, err)
			continue
		}
		if st == nil || st.RunID != s.RunID {
			b.dropSession(ctx, s)
			continue
		}
		b.watch(s, "", 0)
		resumed++
	}
	return resumed, nil
}

// watch polls the run behind s and edits its message. Outcomes at or below
// baseline are ignored, so a retried run is not mistaken for finished.
func (b *Bot) watch(s WatchSession, shown string, baseline int64) {
	ctx, cancel := context.WithCancel(context.Background())

	b.mu.Lock()
	if prev, ok := b.watching[s.UserID]; ok {
		prev()
	}
	b.watching[s.UserID] = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.clearWatch(ctx, s.UserID)
		b.pollProgress(ctx, s, shown, baseline)
	}()
}

func (b *Bot) clearWatch(ctx context.Context, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// A newer watch may have replaced this one.
	if cancel, ok := b.watching[userID]; ok && ctx.Err() == nil {
		cancel()
		delete(b.watching, userID)
	}
}

func (b *Bot) stopWatch(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.watching[userID]; ok {
		cancel()
		delete(b.watching, userID)
	}
}

// Watching reports whether a progress watch is running for userID.
func (b *Bot) Watching(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.watching[userID]
	return ok
}

// Stop ends every progress watch and waits for them to return.
func (b *Bot) Stop() {
	b.mu.Lock()
	for userID, cancel := range b.watching {
		cancel()
		delete(b.watching, userID)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bot) pollProgress(ctx context.Context, s WatchSession, shown string, baseline int64) {
	ticker := time.NewTicker(b.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := b.coach.GetStatus(ctx, s.UserID)
		if err != nil {
			log.Printf("Watch: failed to read status for %s: %v", s.UserID, err)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if st == nil || st.RunID != s.RunID {
			b.dropSession(context.Background(), s)
			return
		}
		if st.Version <= baseline {
			continue
		}

		text := formatStatus(st)
		if text != shown {
			b.edit(s.ChatID, s.MessageID, text, keyboardFor(st))
			shown = text
		}

		if st.IsGenerating {
			continue
		}
		if st.Outcome == generation.OutcomeFailed {
			// Retry re-arms the watch on the same message.
			b.dropSession(context.Background(), s)
			return
		}
		if st.Outcome == generation.OutcomeCompleted {
			if acc, err := b.coach.GetResult(ctx, s.UserID); err != nil {
				log.Printf("Watch: failed to read result for %s: %v", s.UserID, err)
			} else if acc != nil {
				b.sendResult(s.ChatID, acc)
			}
		}
		b.dropSession(context.Background(), s)
		return
	}
}

// dropSession forgets s unless a newer watch has already replaced it.
func (b *Bot) dropSession(ctx context.Context, s WatchSession) {
	if err := b.sessions.DeleteRun(ctx, s.UserID, s.RunID); err != nil {
		log.Printf("Failed to delete watch session for %s: %v", s.UserID, err)
	}
}

func keyboardFor(st *generation.Status) *tgbotapi.InlineKeyboardMarkup {
	var button tgbotapi.InlineKeyboardButton
	switch {
	case st.IsGenerating:
		button = tgbotapi.NewInlineKeyboardButtonData("🛑 Cancel", callbackCancel)
	case st.Outcome == generation.OutcomeFailed:
		button = tgbotapi.NewInlineKeyboardButtonData("🔁 Retry", callbackRetry)
	default:
		return nil
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button))
	return &keyboard
}

func (b *Bot) sendResult(chatID int64, acc *plan.Accumulated) {
	planText, shoppingText := formatPlanMarkdownParts(acc)
	b.send(chatID, planText, nil)
	b.send(chatID, shoppingText, nil)
}

func (b *Bot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("Failed to send message to %d: %v", chatID, err)
	}
	return sent, err
}

func (b *Bot) edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	edit.ReplyMarkup = keyboard
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit message %d in %d: %v", messageID, chatID, err)
	}
}

func (b *Bot) handleMetricsCommand(ctx context.Context, chatID int64) {
	if b.metricsStore == nil {
		b.send(chatID, "Metrics are not enabled.", nil)
		return
	}
	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		b.send(chatID, "❌ Error fetching metrics.", nil)
		return
	}
	summary, err := b.metricsStore.GetAgentSummary(ctx, 7)
	if err != nil {
		b.send(chatID, "❌ Error fetching metrics.", nil)
		return
	}

	health := metrics.GetSysHealth(b.cfg.StateDir)

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}

	if len(summary) > 0 {
		sb.WriteString("\n🤖 *Stages*\n")
		for _, s := range summary {
			fmt.Fprintf(&sb, "• %s: %d runs, %d tokens, avg %dms, %d cached\n",
				escape(s.AgentName), s.Executions, s.TotalTokens, s.AvgLatencyMS, s.CacheHits)
		}
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %s (Alloc) / %s (Sys)\n", health.Alloc, health.Sys)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)

	b.send(chatID, sb.String(), nil)
}

// AdminAlerts messages the admin when a stage call sends an oversized prompt.
type AdminAlerts struct {
	generation.NopObserver
	api       sender
	adminID   int64
	threshold int
}

// NewAdminAlerts creates an observer that alerts cfg.AdminTelegramID.
func NewAdminAlerts(api sender, cfg *config.Config) *AdminAlerts {
	return &AdminAlerts{api: api, adminID: cfg.AdminTelegramID, threshold: contextBloatTokens}
}

func (a *AdminAlerts) RecordAgent(meta shared.AgentMeta) {
	if a.adminID == 0 || meta.Usage.PromptTokens <= a.threshold {
		return
	}
	text := fmt.Sprintf("⚠️ *Context Bloat Alert*\nAgent: %s\nModel: %s\nPrompt Tokens: %d",
		escape(meta.AgentName), escape(meta.Usage.Model), meta.Usage.PromptTokens)
	msg := tgbotapi.NewMessage(a.adminID, text)
	msg.ParseMode = "Markdown"
	if _, err := a.api.Send(msg); err != nil {
		log.Printf("Failed to send admin alert: %v", err)
	}
}

var _ generation.Observer = (*AdminAlerts)(nil)

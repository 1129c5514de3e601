package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0xlajaz/xandeum-nexus/internal/aggregator"
	"github.com/0xlajaz/xandeum-nexus/internal/alerts"
	"github.com/0xlajaz/xandeum-nexus/internal/config"
	"github.com/0xlajaz/xandeum-nexus/internal/diagnosis"
	"github.com/0xlajaz/xandeum-nexus/internal/gemini"
	"github.com/0xlajaz/xandeum-nexus/internal/models"
	"github.com/0xlajaz/xandeum-nexus/internal/scoring"
	"github.com/0xlajaz/xandeum-nexus/internal/watchdog"
	"github.com/0xlajaz/xandeum-nexus/internal/watchlist"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Callback actions encoded into inline keyboard buttons as
// ACTION|pubkey[|category]. Telegram caps callback data at 64 bytes,
// which fits a base58 pubkey plus a category tag.
const (
	cbRescan  = "RESCAN"
	cbSnooze  = "SZ"
	cbIgnore  = "IG"
	cbAck     = "OK"
	cbUnwatch = "UNWATCH"
)

// Bot is the Telegram front-end. It serves subscriber commands and is
// also the delivery sink for the alert engine.
type Bot struct {
	api       *tgbotapi.BotAPI
	config    *config.Config
	watchlist watchlist.Store
	engine    *alerts.Engine
	agg       *aggregator.Aggregator
	scorer    *scoring.Scorer
	diagnoser *diagnosis.Diagnoser
	watchdog  *watchdog.Watchdog
	gemini    *gemini.Client
}

// NewBot creates the Telegram bot instance. The gemini client may be
// nil; /ai_summary then reports the feature as disabled.
func NewBot(cfg *config.Config, wl watchlist.Store, engine *alerts.Engine, agg *aggregator.Aggregator,
	scorer *scoring.Scorer, diag *diagnosis.Diagnoser, wd *watchdog.Watchdog, ai *gemini.Client) (*Bot, error) {
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	api.Debug = cfg.Environment == "development"
	logrus.Infof("Telegram bot authorized on account %s", api.Self.UserName)

	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Welcome message and overview"},
		{Command: "watch", Description: "Watch a pod by pubkey"},
		{Command: "unwatch", Description: "Stop watching a pod"},
		{Command: "list", Description: "List your watched pods"},
		{Command: "check", Description: "Check a pod (or all watched pods) now"},
		{Command: "stats", Description: "Network-wide overview"},
		{Command: "ai_summary", Description: "AI-generated network briefing"},
		{Command: "stop", Description: "Stop watching everything"},
		{Command: "help", Description: "Show all available commands"},
	}
	if _, err := api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		logrus.Warnf("Failed to set bot commands: %v", err)
	}

	return &Bot{
		api:       api,
		config:    cfg,
		watchlist: wl,
		engine:    engine,
		agg:       agg,
		scorer:    scorer,
		diagnoser: diag,
		watchdog:  wd,
		gemini:    ai,
	}, nil
}

// Start begins the bot's update handling loop. Blocks until the update
// channel closes.
func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			go b.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			go b.handleMessage(update.Message)
		}
	}

	return nil
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	subscriber := strconv.FormatInt(chatID, 10)
	text := strings.TrimSpace(msg.Text)

	logrus.Infof("Received command from chat %s: %s", subscriber, firstWord(text))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case strings.HasPrefix(text, "/start"):
		b.sendMessage(chatID, b.handleStart())
	case strings.HasPrefix(text, "/help"):
		b.sendMessage(chatID, b.handleHelp())
	case strings.HasPrefix(text, "/watch"):
		b.handleWatch(ctx, chatID, subscriber, text)
	case strings.HasPrefix(text, "/unwatch"):
		b.handleUnwatch(ctx, chatID, subscriber, text)
	case strings.HasPrefix(text, "/list"):
		b.handleList(ctx, chatID, subscriber)
	case strings.HasPrefix(text, "/check"):
		b.handleCheck(ctx, chatID, subscriber, text)
	case strings.HasPrefix(text, "/stats"):
		b.handleStats(ctx, chatID)
	case strings.HasPrefix(text, "/ai_summary"):
		b.handleAISummary(ctx, chatID)
	case strings.HasPrefix(text, "/stop"):
		b.handleStop(ctx, chatID, subscriber)
	default:
		b.sendMessage(chatID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart() string {
	return `🛰 *Welcome to the Xandeum Pod Sentinel!*

I keep an eye on your Xandeum pods and alert you when something goes wrong:

• Offline detection with confirmation (no flapping alerts)
• Health scoring: version, uptime, storage, paging efficiency
• Actionable diagnosis with suggested fixes
• Recovery notifications when issues clear

*Get started:*
/watch <pubkey> - Start watching a pod
/check <pubkey> - One-off health check
/stats - Network overview

Use /help for the full command list.`
}

func (b *Bot) handleHelp() string {
	return `*Available Commands:*

/watch <pubkey> - Watch a pod and get alerted on problems
/unwatch <pubkey> - Stop watching a pod
/list - List your watched pods with current status
/check <pubkey> - Check one pod right now
/check - Check all your watched pods
/stats - Network-wide overview
/ai_summary - AI-generated network briefing
/stop - Stop watching everything
/help - Show this help message

*Alert buttons:*
🔄 Re-scan - Poll the pod again immediately
😴 Snooze - Mute this alert for 24 hours
🔕 Ignore - Mute this alert permanently

_Pods are polled every few minutes via the public seed peers._`
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, subscriber, text string) {
	pubkey := argAfter(text, "/watch")
	if pubkey == "" {
		b.sendMessage(chatID, "Usage: /watch <pubkey>")
		return
	}

	added, err := b.watchlist.Add(ctx, subscriber, pubkey)
	if err != nil {
		logrus.Errorf("Failed to add watch for %s: %v", shortID(pubkey), err)
		b.sendMessage(chatID, "Could not save your watch right now, please try again.")
		return
	}
	if !added {
		b.sendMessage(chatID, fmt.Sprintf("You are already watching `%s`.", shortID(pubkey)))
		return
	}

	b.sendMessage(chatID, fmt.Sprintf("👀 Now watching `%s`. Running an initial check...", shortID(pubkey)))

	// Initial scan so the subscriber sees the pod's state immediately.
	// Seeding the cooldown stops the next cycle from repeating it.
	snap := b.agg.Collect(ctx)
	report, present := snap.Lookup(pubkey)
	if !present {
		if snap.Suspect(b.config.SafetyFloor) {
			b.sendMessage(chatID, "The seed peers look unreachable right now, I could not verify the pod. Monitoring is active.")
			return
		}
		b.sendMessage(chatID, fmt.Sprintf("⚠️ `%s` was not seen by any seed peer. I will alert you once it is confirmed offline.", shortID(pubkey)))
		return
	}

	diag := b.diagnoser.Diagnose(report)
	score := b.scorer.Score(report, scoring.Context{MaxUptime: snap.MaxUptime})
	if diag.Status != models.StatusHealthy {
		b.engine.MarkAlerted(subscriber, pubkey, diag.Category())
		b.sendWithKeyboard(chatID, formatNodeDetail(report, score, diag), alertKeyboard(pubkey, diag.Category()))
		return
	}
	b.sendMessage(chatID, formatNodeDetail(report, score, diag))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64, subscriber, text string) {
	pubkey := argAfter(text, "/unwatch")
	if pubkey == "" {
		b.sendMessage(chatID, "Usage: /unwatch <pubkey>")
		return
	}
	b.removeWatch(ctx, chatID, subscriber, pubkey)
}

func (b *Bot) removeWatch(ctx context.Context, chatID int64, subscriber, pubkey string) {
	removed, err := b.watchlist.Remove(ctx, subscriber, pubkey)
	if err != nil {
		logrus.Errorf("Failed to remove watch for %s: %v", shortID(pubkey), err)
		b.sendMessage(chatID, "Could not update your watch-list right now, please try again.")
		return
	}
	if !removed {
		b.sendMessage(chatID, fmt.Sprintf("You were not watching `%s`.", shortID(pubkey)))
		return
	}
	b.engine.ForgetSubscription(ctx, subscriber, pubkey)
	b.sendMessage(chatID, fmt.Sprintf("Stopped watching `%s`.", shortID(pubkey)))
}

func (b *Bot) handleList(ctx context.Context, chatID int64, subscriber string) {
	pubkeys, err := b.watchlist.Get(ctx, subscriber)
	if err != nil {
		logrus.Errorf("Failed to read watch-list for %s: %v", subscriber, err)
		b.sendMessage(chatID, "Could not read your watch-list right now, please try again.")
		return
	}
	if len(pubkeys) == 0 {
		b.sendMessage(chatID, "You are not watching any pods yet. Use /watch <pubkey> to start.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Your watched pods (%d):*\n\n", len(pubkeys)))

	cached, ok := b.watchdog.LatestTelemetry(ctx)
	for _, pubkey := range pubkeys {
		line := fmt.Sprintf("• `%s`", shortID(pubkey))
		if ok {
			found := false
			for _, node := range cached.Nodes {
				if node.Pubkey == pubkey {
					line += fmt.Sprintf(" %s %d/100", healthEmoji(node.HealthScore), node.HealthScore)
					found = true
					break
				}
			}
			if !found {
				line += " ⚫ not seen last cycle"
			}
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\nUse /check <pubkey> for details.")
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64, subscriber, text string) {
	pubkey := argAfter(text, "/check")

	targets := []string{pubkey}
	if pubkey == "" {
		watched, err := b.watchlist.Get(ctx, subscriber)
		if err != nil || len(watched) == 0 {
			b.sendMessage(chatID, "Usage: /check <pubkey>, or /watch a pod first and use /check alone.")
			return
		}
		targets = watched
	}

	snap := b.agg.Collect(ctx)
	if len(snap.Nodes) == 0 {
		b.sendMessage(chatID, "No seed peer responded, the network looks unreachable from here.")
		return
	}

	for _, pk := range targets {
		report, present := snap.Lookup(pk)
		if !present {
			b.sendMessage(chatID, fmt.Sprintf("⚫ `%s` was not seen by any of %d responding peers.", shortID(pk), snap.ReachablePeers))
			continue
		}
		diag := b.diagnoser.Diagnose(report)
		score := b.scorer.Score(report, scoring.Context{MaxUptime: snap.MaxUptime})
		if diag.Status != models.StatusHealthy {
			b.sendWithKeyboard(chatID, formatNodeDetail(report, score, diag), alertKeyboard(pk, diag.Category()))
			continue
		}
		b.sendMessage(chatID, formatNodeDetail(report, score, diag))
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	if cached, ok := b.watchdog.LatestTelemetry(ctx); ok {
		b.sendMessage(chatID, formatNetworkStats(cached.Network, cached.Timestamp))
		return
	}

	b.sendMessage(chatID, "Collecting a fresh snapshot, one moment...")
	snap := b.agg.Collect(ctx)
	if len(snap.Nodes) == 0 {
		b.sendMessage(chatID, "No seed peer responded, try again in a minute.")
		return
	}

	stats := models.NetworkStats{TotalNodes: len(snap.Nodes)}
	var healthSum, pagingSum float64
	for _, report := range snap.Nodes {
		score := b.scorer.Score(report, scoring.Context{MaxUptime: snap.MaxUptime})
		healthSum += float64(score.Total)
		pagingSum += score.HitRate
		stats.TotalStorageGB += report.StorageCommitted / (1024 * 1024 * 1024)
		if b.scorer.VersionAccepted(report.Version) {
			stats.CompliantNodes++
		}
	}
	stats.AvgHealth = healthSum / float64(stats.TotalNodes)
	stats.AvgPagingEfficiency = pagingSum / float64(stats.TotalNodes)

	b.sendMessage(chatID, formatNetworkStats(stats, snap.Timestamp))
}

func (b *Bot) handleAISummary(ctx context.Context, chatID int64) {
	if b.gemini == nil {
		b.sendMessage(chatID, "AI summaries are not enabled on this deployment.")
		return
	}

	cached, ok := b.watchdog.LatestTelemetry(ctx)
	if !ok {
		b.sendMessage(chatID, "No telemetry available yet, try again after the next polling cycle.")
		return
	}

	b.sendMessage(chatID, "🤖 Generating network briefing...")
	summary, err := b.gemini.NetworkSummary(ctx, cached.Network)
	if err != nil {
		logrus.Errorf("AI summary failed: %v", err)
		b.sendMessage(chatID, "The AI briefing is unavailable right now, please try again later.")
		return
	}
	b.sendMessage(chatID, summary)
}

func (b *Bot) handleStop(ctx context.Context, chatID int64, subscriber string) {
	pubkeys, err := b.watchlist.Get(ctx, subscriber)
	if err != nil {
		logrus.Errorf("Failed to read watch-list for %s: %v", subscriber, err)
		b.sendMessage(chatID, "Could not read your watch-list right now, please try again.")
		return
	}
	for _, pubkey := range pubkeys {
		if _, err := b.watchlist.Remove(ctx, subscriber, pubkey); err != nil {
			logrus.Errorf("Failed to remove watch for %s: %v", shortID(pubkey), err)
			continue
		}
		b.engine.ForgetSubscription(ctx, subscriber, pubkey)
	}
	b.sendMessage(chatID, fmt.Sprintf("Stopped watching %d pod(s). Goodbye! 👋", len(pubkeys)))
}

// callbackChatID extracts the originating chat. Telegram omits the
// Message on callbacks from sufficiently old cards.
func callbackChatID(cb *tgbotapi.CallbackQuery) (int64, bool) {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return 0, false
	}
	return cb.Message.Chat.ID, true
}

// handleCallback routes inline keyboard presses.
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	chatID, ok := callbackChatID(cb)
	if !ok {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "This card has expired, use /check instead")); err != nil {
			logrus.Warnf("Failed to answer callback: %v", err)
		}
		return
	}
	subscriber := strconv.FormatInt(chatID, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	parts := strings.Split(cb.Data, "|")
	action := parts[0]

	ack := func(text string) {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
			logrus.Warnf("Failed to answer callback: %v", err)
		}
	}

	switch action {
	case cbRescan:
		if len(parts) != 3 {
			ack("Malformed button")
			return
		}
		ack("Re-scanning...")
		b.rescan(ctx, chatID, subscriber, parts[1], models.IssueCategory(parts[2]))

	case cbSnooze:
		if len(parts) != 3 {
			ack("Malformed button")
			return
		}
		until := b.engine.Snooze(ctx, subscriber, parts[1], models.IssueCategory(parts[2]))
		ack("Snoozed")
		b.sendMessage(chatID, fmt.Sprintf("😴 Snoozed %s alerts for `%s` until %s.",
			parts[2], shortID(parts[1]), until.UTC().Format("Jan 2 15:04 UTC")))

	case cbIgnore:
		if len(parts) != 3 {
			ack("Malformed button")
			return
		}
		b.engine.Ignore(ctx, subscriber, parts[1], models.IssueCategory(parts[2]))
		ack("Ignored")
		b.sendMessage(chatID, fmt.Sprintf("🔕 Ignoring %s alerts for `%s`. Unwatch and re-watch the pod to reset.",
			parts[2], shortID(parts[1])))

	case cbAck:
		ack("Acknowledged")
		// Drop the keyboard so the card reads as handled.
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if _, err := b.api.Request(edit); err != nil {
			logrus.Warnf("Failed to clear keyboard: %v", err)
		}

	case cbUnwatch:
		if len(parts) != 2 {
			ack("Malformed button")
			return
		}
		ack("Unwatching")
		b.removeWatch(ctx, chatID, subscriber, parts[1])

	default:
		ack("Unknown action")
	}
}

// rescan polls the network again for one pod and applies the verdict to
// the open alert episode.
func (b *Bot) rescan(ctx context.Context, chatID int64, subscriber, pubkey string, cat models.IssueCategory) {
	snap := b.agg.Collect(ctx)
	report, present := snap.Lookup(pubkey)

	if !present {
		if snap.Suspect(b.config.SafetyFloor) {
			b.sendMessage(chatID, "The seed peers look unreachable right now, re-scan is inconclusive.")
			return
		}
		b.sendWithKeyboard(chatID, fmt.Sprintf("⚫ `%s` is still not visible to any seed peer.", shortID(pubkey)),
			alertKeyboard(pubkey, cat))
		return
	}

	diag := b.diagnoser.Diagnose(report)
	score := b.scorer.Score(report, scoring.Context{MaxUptime: snap.MaxUptime})

	if b.engine.ResolveRescan(subscriber, pubkey, cat, diag) {
		b.sendMessage(chatID, fmt.Sprintf("✅ `%s` re-scanned healthy (*%d/100*). Episode closed.", shortID(pubkey), score.Total))
		return
	}
	if diag.Status == models.StatusHealthy {
		b.sendMessage(chatID, formatNodeDetail(report, score, diag))
		return
	}
	b.sendWithKeyboard(chatID, formatNodeDetail(report, score, diag), alertKeyboard(pubkey, diag.Category()))
}

// Sink implementation: the engine hands fully-formed events to these.

func (b *Bot) SendOfflineAlert(ctx context.Context, a models.OfflineAlert) error {
	chatID, err := strconv.ParseInt(a.Subscriber, 10, 64)
	if err != nil {
		return fmt.Errorf("bad subscriber id %q: %w", a.Subscriber, err)
	}
	return b.send(chatID, formatOfflineAlert(a), alertKeyboard(a.Pubkey, models.IssueOffline))
}

func (b *Bot) SendHealthAlert(ctx context.Context, a models.HealthAlert) error {
	chatID, err := strconv.ParseInt(a.Subscriber, 10, 64)
	if err != nil {
		return fmt.Errorf("bad subscriber id %q: %w", a.Subscriber, err)
	}
	return b.send(chatID, formatHealthAlert(a), alertKeyboard(a.Pubkey, a.Category))
}

func (b *Bot) SendRecovery(ctx context.Context, n models.RecoveryNotification) error {
	chatID, err := strconv.ParseInt(n.Subscriber, 10, 64)
	if err != nil {
		return fmt.Errorf("bad subscriber id %q: %w", n.Subscriber, err)
	}
	return b.send(chatID, formatRecovery(n), nil)
}

// alertKeyboard builds the standard action row attached to alerts.
func alertKeyboard(pubkey string, cat models.IssueCategory) *tgbotapi.InlineKeyboardMarkup {
	row := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Re-scan", cbRescan+"|"+pubkey+"|"+string(cat)),
		tgbotapi.NewInlineKeyboardButtonData("😴 Snooze 24h", cbSnooze+"|"+pubkey+"|"+string(cat)),
		tgbotapi.NewInlineKeyboardButtonData("🔕 Ignore", cbIgnore+"|"+pubkey+"|"+string(cat)),
	)
	second := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("👍 OK", cbAck+"|"+pubkey+"|"+string(cat)),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Unwatch", cbUnwatch+"|"+pubkey),
	)
	markup := tgbotapi.NewInlineKeyboardMarkup(row, second)
	return &markup
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if err := b.send(chatID, text, nil); err != nil {
		logrus.Errorf("Failed to send message: %v", err)
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if err := b.send(chatID, text, keyboard); err != nil {
		logrus.Errorf("Failed to send message: %v", err)
	}
}

func (b *Bot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	_, err := b.api.Send(msg)
	return err
}

func argAfter(text, command string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(text, command))
	if rest == "" {
		return ""
	}
	return strings.Fields(rest)[0]
}

func firstWord(text string) string {
	if fields := strings.Fields(text); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

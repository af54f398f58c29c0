package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/yegors/webchat/internal/session"
	"github.com/yegors/webchat/pkg/logger"
)

// OnHoldScheduler replays comfort texts and resource links on their own
// cadences while the customer waits for an agent. The two groups run on
// independent timers; each tick emits exactly one line and advances a
// wrapping cursor.
type OnHoldScheduler struct {
	timers *session.Registry
	ui     UISink
	logger *logger.Logger

	mu            sync.Mutex
	comfort       *ComfortGroup
	urls          *URLGroup
	comfortCursor int
	urlCursor     int
}

// NewOnHoldScheduler creates an idle scheduler
func NewOnHoldScheduler(timers *session.Registry, ui UISink, logger *logger.Logger) *OnHoldScheduler {
	return &OnHoldScheduler{
		timers: timers,
		ui:     ui,
		logger: logger.Named("on-hold"),
	}
}

// Start begins rotation for whichever groups have items. Either group may
// be nil or empty. Messages are ordered by their sequence numbers first.
func (s *OnHoldScheduler) Start(comfort *ComfortGroup, urls *URLGroup) {
	s.mu.Lock()
	s.comfort = nil
	s.urls = nil
	s.comfortCursor = 0
	s.urlCursor = 0

	if comfort != nil && len(comfort.Messages) > 0 {
		comfort.SortMessages()
		s.comfort = comfort
	}
	if urls != nil && len(urls.URLs) > 0 {
		urls.SortURLs()
		s.urls = urls
	}
	comfortActive := s.comfort != nil
	urlsActive := s.urls != nil
	s.mu.Unlock()

	if !comfortActive && !urlsActive {
		s.logger.Debug("No on-hold content configured")
		return
	}

	if comfortActive {
		s.logger.Info("Starting on-hold comfort rotation",
			logger.Int("messages", len(comfort.Messages)),
			logger.Int("delay_secs", comfort.Delay))
		s.timers.ScheduleRepeating(session.TimerOnHoldText,
			time.Duration(comfort.Delay)*time.Second, s.tickComfort)
	}
	if urlsActive {
		s.logger.Info("Starting on-hold url rotation",
			logger.Int("urls", len(urls.URLs)),
			logger.Int("hold_secs", urls.HoldTime))
		s.timers.ScheduleRepeating(session.TimerOnHoldURL,
			time.Duration(urls.HoldTime)*time.Second, s.tickURL)
	}
}

// Stop halts both rotations. Safe to call repeatedly or when idle.
func (s *OnHoldScheduler) Stop() {
	s.timers.Cancel(session.TimerOnHoldText)
	s.timers.Cancel(session.TimerOnHoldURL)
}

func (s *OnHoldScheduler) tickComfort() {
	s.mu.Lock()
	group := s.comfort
	if group == nil {
		s.mu.Unlock()
		return
	}
	msg := group.Messages[s.comfortCursor]
	s.comfortCursor = (s.comfortCursor + 1) % len(group.Messages)
	s.mu.Unlock()

	s.ui.Render(msg.Message, CategorySystem, time.Now(), "")
}

func (s *OnHoldScheduler) tickURL() {
	s.mu.Lock()
	group := s.urls
	if group == nil {
		s.mu.Unlock()
		return
	}
	item := group.URLs[s.urlCursor]
	s.urlCursor = (s.urlCursor + 1) % len(group.URLs)
	s.mu.Unlock()

	s.ui.Render(fmt.Sprintf("%s: %s", group.Description, item.URL),
		CategorySystem, time.Now(), "")
}

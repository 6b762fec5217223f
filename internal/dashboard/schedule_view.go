package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/example/roomboard/internal/meeting"
)

// HourCellHeightPx is the rendered height of one hour row: one pixel per
// minute.
const HourCellHeightPx = 60

// RoomFilterAll shows every room in the schedule grid.
const RoomFilterAll = "all"

// Block is the rendered geometry of one meeting in the week grid.
type Block struct {
	Meeting meeting.Meeting
	// Day is the column index, 0 = Monday through 6 = Sunday.
	Day int
	// HourCell is the row the block starts in.
	HourCell int
	// TopPercent positions a partial-hour start inside the starting hour
	// cell.
	TopPercent float64
	// HeightPx is the block height, equal to the duration in minutes.
	HeightPx int
}

// NowIndicator marks the current minute in today's column.
type NowIndicator struct {
	Day        int
	HourCell   int
	TopPercent float64
	// OffsetPx is the indicator's distance from the top of the column.
	OffsetPx int
	Label    string
}

// WeekGrid is the complete render state of the schedule view for one week.
type WeekGrid struct {
	Days   [7]string
	Blocks []Block
	Now    *NowIndicator
}

// ScrollTop returns the scroll offset that centers the now indicator in a
// viewport of the given height, clamped at the top of the grid.
func (g WeekGrid) ScrollTop(viewportPx int) int {
	if g.Now == nil {
		return 0
	}
	offset := g.Now.OffsetPx - viewportPx/2
	if offset < 0 {
		return 0
	}
	return offset
}

// BuildWeekGrid lays out the meetings of the Monday-start week containing
// the anchor. Ended meetings never render; a non-empty filter other than
// "all" hides meetings whose room does not match under the tolerant rule.
// The now indicator appears only when today's civil date falls inside the
// shown week.
func BuildWeekGrid(meetings []meeting.Meeting, anchor time.Time, roomFilter string, now time.Time) WeekGrid {
	grid := WeekGrid{Days: meeting.WeekDates(anchor)}

	for _, m := range meetings {
		if m.Ended() {
			continue
		}
		day := meeting.WeekdayIndex(m.Date, anchor)
		if day < 0 {
			continue
		}
		if roomFilter != "" && roomFilter != RoomFilterAll && !meeting.RoomMatches(m.Room, roomFilter) {
			continue
		}
		start := m.StartMinutes()
		if start < 0 || m.DurationMinutes() <= 0 {
			continue
		}
		grid.Blocks = append(grid.Blocks, Block{
			Meeting:    m,
			Day:        day,
			HourCell:   start / 60,
			TopPercent: float64(start%60) / 60 * 100,
			HeightPx:   m.DurationMinutes(),
		})
	}

	if day := meeting.WeekdayIndex(meeting.CivilDate(now), anchor); day >= 0 {
		minute := meeting.MinutesOfDay(now)
		grid.Now = &NowIndicator{
			Day:        day,
			HourCell:   minute / 60,
			TopPercent: float64(minute%60) / 60 * 100,
			OffsetPx:   minute,
			Label:      meeting.ClockOf(now),
		}
	}

	return grid
}

// DraftForCell prefills a booking draft for a clicked empty grid cell: the
// cell's date and hour with a default one-hour span.
func DraftForCell(date string, hour int) meeting.Meeting {
	if hour < 0 {
		hour = 0
	}
	start := hour * 60
	end := start + 60
	if end > 23*60+59 {
		end = 23*60 + 59
	}
	return meeting.Meeting{
		Date:      date,
		StartTime: meeting.FormatClock(start),
		EndTime:   meeting.FormatClock(end),
		State:     meeting.StateScheduled,
	}
}

// ScheduleViewOptions configures a ScheduleView.
type ScheduleViewOptions struct {
	Manager *Manager
	// OnRender receives every rebuilt grid.
	OnRender func(WeekGrid)
	// DataDebounce coalesces meeting-data bursts (default 300 ms);
	// EndDebounce coalesces early-end refreshes (default 100 ms).
	DataDebounce time.Duration
	EndDebounce  time.Duration
	// Now supplies the clock; nil means time.Now.
	Now func() time.Time
}

// ScheduleView keeps the week grid current: it follows the Data Manager's
// events with debounced re-renders, advances the now indicator once a
// minute, and resets its anchor when the civil day rolls over.
type ScheduleView struct {
	manager  *Manager
	onRender func(WeekGrid)
	now      func() time.Time

	mu     sync.Mutex
	anchor time.Time
	filter string
	grid   WeekGrid

	unsubscribe []func()
}

// NewScheduleView constructs the view anchored on today and subscribes it to
// the manager's bus.
func NewScheduleView(opts ScheduleViewOptions) *ScheduleView {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DataDebounce == 0 {
		opts.DataDebounce = 300 * time.Millisecond
	}
	if opts.EndDebounce == 0 {
		opts.EndDebounce = 100 * time.Millisecond
	}

	v := &ScheduleView{
		manager:  opts.Manager,
		onRender: opts.OnRender,
		now:      opts.Now,
		anchor:   opts.Now(),
		filter:   RoomFilterAll,
	}

	bus := opts.Manager.Bus()
	v.unsubscribe = append(v.unsubscribe,
		bus.Subscribe(EventMeetingDataUpdated, Debounced(opts.DataDebounce, func(any) { v.Render() })),
		bus.Subscribe(EventMeetingEndedEarly, Debounced(opts.EndDebounce, func(any) { v.Render() })),
	)

	v.Render()
	return v
}

// Close detaches the view from the bus.
func (v *ScheduleView) Close() {
	for _, fn := range v.unsubscribe {
		fn()
	}
}

// Grid returns the last rendered week grid.
func (v *ScheduleView) Grid() WeekGrid {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.grid
}

// Render rebuilds the grid from the manager's mirror.
func (v *ScheduleView) Render() {
	v.mu.Lock()
	anchor, filter := v.anchor, v.filter
	v.mu.Unlock()

	grid := BuildWeekGrid(v.manager.List(), anchor, filter, v.now())

	v.mu.Lock()
	v.grid = grid
	v.mu.Unlock()

	if v.onRender != nil {
		v.onRender(grid)
	}
}

// SetFilter narrows the grid to one room; RoomFilterAll restores visibility.
func (v *ScheduleView) SetFilter(room string) {
	v.mu.Lock()
	if room == "" {
		room = RoomFilterAll
	}
	v.filter = room
	v.mu.Unlock()
	v.Render()
}

// Filter returns the active room filter.
func (v *ScheduleView) Filter() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// ShiftWeek moves the anchor by whole weeks.
func (v *ScheduleView) ShiftWeek(weeks int) {
	v.mu.Lock()
	v.anchor = v.anchor.AddDate(0, 0, 7*weeks)
	v.mu.Unlock()
	v.Render()
}

// Today resets the anchor to the current civil date.
func (v *ScheduleView) Today() {
	v.mu.Lock()
	v.anchor = v.now()
	v.mu.Unlock()
	v.Render()
}

// Anchor returns the anchor instant of the shown week.
func (v *ScheduleView) Anchor() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.anchor
}

// Run advances the now indicator once a minute until the context is
// cancelled. When the civil day rolls over, the anchor resets to today.
func (v *ScheduleView) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	lastDay := meeting.CivilDate(v.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if today := meeting.CivilDate(v.now()); today != lastDay {
				lastDay = today
				v.Today()
				continue
			}
			v.Render()
		}
	}
}

package engine

import (
	"fmt"
	"time"

	"hajj-management/internal/model"
)

const clockLayout = "15:04"

// Window 阶段时间窗口 [Start, End]
type Window struct {
	Start time.Time
	End   time.Time
}

// StageWindow 将阶段的 date + HH:MM 组合为 loc 时区下的时间窗口
func StageWindow(s *model.Stage, loc *time.Location) (Window, error) {
	start, err := combine(s.StartDate, s.StartTime, loc)
	if err != nil {
		return Window{}, fmt.Errorf("阶段 %s 开始时间无效: %w", s.StageID, err)
	}
	end, err := combine(s.EndDate, s.EndTime, loc)
	if err != nil {
		return Window{}, fmt.Errorf("阶段 %s 结束时间无效: %w", s.StageID, err)
	}
	return Window{Start: start, End: end}, nil
}

// Contains 闭区间判断
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Ended 窗口是否已结束
func (w Window) Ended(t time.Time) bool {
	return t.After(w.End)
}

// Valid 结束时间不早于开始时间
func (w Window) Valid() bool {
	return !w.End.Before(w.Start)
}

// SplitDateClock 将时间拆为 date 列（UTC 零点）与 HH:MM 字符串，二者均以 loc 时区的墙上时间为准
func SplitDateClock(t time.Time, loc *time.Location) (time.Time, string) {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), local.Format(clockLayout)
}

// ParseClock 校验 HH:MM
func ParseClock(clock string) (hour, minute int, err error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return 0, 0, fmt.Errorf("时间格式应为 HH:MM: %q", clock)
	}
	return t.Hour(), t.Minute(), nil
}

func combine(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc), nil
}

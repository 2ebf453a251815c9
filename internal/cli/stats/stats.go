package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/studyroom/internal/cli"
	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/storage"
	"github.com/julianstephens/studyroom/internal/utils"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(11)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	// calendar shades, from no study to four hours and more
	shades = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("22")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),
	}
)

const barWidth = 30

// StatsCmd shows one day's record.
type StatsCmd struct {
	User string `arg:"" help:"Login ID of the user."`
	Date string `help:"Day to show (YYYY-MM-DD). Defaults to today."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	user, err := ctx.ResolveUser(bg, c.User)
	if err != nil {
		return err
	}
	date := c.Date
	if date == "" {
		if date, err = ctx.Today(bg); err != nil {
			return err
		}
	} else if _, err := time.Parse(constants.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}

	st, err := ctx.Store.GetStatistic(bg, user.ID, date)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Printf("No study time recorded for %s on %s.\n", user.Nickname, date)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get statistic: %w", err)
	}
	fmt.Print(renderDay(user, st))
	return nil
}

func renderDay(user models.User, st models.Statistic) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · %s", user.Nickname, st.Date)) + "\n\n")
	b.WriteString(labelStyle.Render("Study") + utils.FormatMillis(st.TotalTime) + "\n")
	b.WriteString(labelStyle.Render("Rest") + utils.FormatMillis(st.RestTime) + "\n")
	b.WriteString(labelStyle.Render("Longest") + utils.FormatMillis(st.MaxTime) + "\n\n")

	parts := []struct {
		name string
		ms   int64
	}{
		{"Night", st.Night},
		{"Morning", st.Morning},
		{"Afternoon", st.Afternoon},
		{"Evening", st.Evening},
	}
	for _, p := range parts {
		b.WriteString(labelStyle.Render(p.name) + bar(p.ms, st.TotalTime) + " " + utils.FormatMillis(p.ms) + "\n")
	}
	return b.String()
}

func bar(part, total int64) string {
	n := 0
	if total > 0 {
		n = int(part * barWidth / total)
	}
	return barStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("░", barWidth-n))
}

// StatsCalendarCmd shows a month of daily totals.
type StatsCalendarCmd struct {
	User  string `arg:"" help:"Login ID of the user."`
	Month string `help:"Month to show (YYYY-MM). Defaults to the current month."`
}

func (c *StatsCalendarCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	user, err := ctx.ResolveUser(bg, c.User)
	if err != nil {
		return err
	}
	month := c.Month
	if month == "" {
		today, err := ctx.Today(bg)
		if err != nil {
			return err
		}
		month = today[:7]
	}
	from, to, err := utils.MonthRange(month)
	if err != nil {
		return err
	}

	stats, err := ctx.Store.ListStatistics(bg, user.ID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list statistics: %w", err)
	}
	days, err := Calendar(from, to, stats)
	if err != nil {
		return err
	}

	var total int64
	for _, d := range days {
		total += d.TotalTime
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s · %s · %s", user.Nickname, month, utils.FormatMillis(total))))
	fmt.Println()
	fmt.Print(renderCalendar(days))
	return nil
}

// Calendar returns one entry per day in [from, to], zero where nothing
// was recorded.
func Calendar(from, to string, stats []models.Statistic) ([]models.CalendarDay, error) {
	start, err := time.Parse(constants.DateFormat, from)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(constants.DateFormat, to)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]int64, len(stats))
	for _, st := range stats {
		byDate[st.Date] += st.TotalTime
	}

	var days []models.CalendarDay
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(constants.DateFormat)
		days = append(days, models.CalendarDay{Date: date, TotalTime: byDate[date]})
	}
	return days, nil
}

func renderCalendar(days []models.CalendarDay) string {
	if len(days) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(dimStyle.Render(" Sun  Mon  Tue  Wed  Thu  Fri  Sat") + "\n")

	first, _ := time.Parse(constants.DateFormat, days[0].Date)
	col := int(first.Weekday())
	b.WriteString(strings.Repeat("     ", col))
	for _, d := range days {
		t, _ := time.Parse(constants.DateFormat, d.Date)
		b.WriteString(shade(d.TotalTime).Render(fmt.Sprintf(" %3d ", t.Day())))
		col++
		if col == 7 {
			b.WriteString("\n")
			col = 0
		}
	}
	if col != 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func shade(ms int64) lipgloss.Style {
	hours := int(time.Duration(ms) * time.Millisecond / time.Hour)
	switch {
	case ms == 0:
		return shades[0]
	case hours < 1:
		return shades[1]
	case hours < 2:
		return shades[2]
	case hours < 4:
		return shades[3]
	default:
		return shades[4]
	}
}

// StatsRankingCmd ranks users by study time over a date range.
type StatsRankingCmd struct {
	From  string `help:"First day (YYYY-MM-DD). Defaults to today."`
	To    string `help:"Last day (YYYY-MM-DD). Defaults to --from."`
	Limit int    `help:"Number of users to show." default:"10"`
}

func (c *StatsRankingCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	from := c.From
	if from == "" {
		var err error
		if from, err = ctx.Today(bg); err != nil {
			return err
		}
	}
	to := c.To
	if to == "" {
		to = from
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(constants.DateFormat, d); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
		}
	}
	if to < from {
		return fmt.Errorf("--to %s is before --from %s", to, from)
	}

	ranking, err := ctx.Store.Ranking(bg, from, to, c.Limit)
	if err != nil {
		return fmt.Errorf("failed to rank users: %w", err)
	}
	title := from
	if to != from {
		title = from + " – " + to
	}
	fmt.Println(titleStyle.Render("Ranking · " + title))
	if len(ranking) == 0 {
		fmt.Println("No study time recorded.")
		return nil
	}
	for i, r := range ranking {
		name := r.Nickname
		if name == "" {
			name = dimStyle.Render(r.UserID)
		}
		fmt.Printf("%3d. %-20s %s\n", i+1, name, utils.FormatMillis(r.TotalTime))
	}
	return nil
}

package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// defaultLanguages are seeded into an empty languages table.
var defaultLanguages = []types.Language{
	{Code: "en", Name: "English", NativeName: "English", Active: true},
	{Code: "es", Name: "Spanish", NativeName: "Español", Active: true},
	{Code: "fr", Name: "French", NativeName: "Français", Active: true},
	{Code: "de", Name: "German", NativeName: "Deutsch", Active: true},
	{Code: "pt", Name: "Portuguese", NativeName: "Português", Active: true},
	{Code: "id", Name: "Indonesian", NativeName: "Bahasa Indonesia", Active: true},
	{Code: "vi", Name: "Vietnamese", NativeName: "Tiếng Việt", Active: true},
	{Code: "ja", Name: "Japanese", NativeName: "日本語", Active: true},
	{Code: "ko", Name: "Korean", NativeName: "한국어", Active: true},
	{Code: "zh", Name: "Chinese", NativeName: "中文", Active: true},
}

// rewardCycleDays is the length of the daily reward cycle.
const rewardCycleDays = 30

// defaultRewardCycle returns the 30-day reward schedule. Rewards grow by 5
// through each week; every seventh day and the final day are bonus days.
func defaultRewardCycle() []types.RewardDay {
	days := make([]types.RewardDay, 0, rewardCycleDays)
	for day := 1; day <= rewardCycleDays; day++ {
		rd := types.RewardDay{Day: day, Reward: int64(10 + 5*((day-1)%7))}
		switch {
		case day == rewardCycleDays:
			rd.Reward, rd.Bonus = 100, true
		case day%7 == 0:
			rd.Reward, rd.Bonus = 50, true
		}
		days = append(days, rd)
	}
	return days
}

// defaultFlags are the feature flags seeded into an empty settings table.
var defaultFlags = []struct {
	key     string
	enabled bool
}{
	{types.FlagMaintenanceMode, false},
	{types.FlagRegistration, true},
	{types.FlagDailyRewards, true},
	{types.FlagChapterComments, true},
	{types.FlagAdsEnabled, false},
}

// seedIfEmpty inserts rows into table only when the table has no rows. It is
// meant to run inside a transaction so the count and the inserts see the
// same snapshot. Returns the number of rows inserted.
func seedIfEmpty(ctx context.Context, q queryer, table string, columns []string, rows [][]any) (int, error) {
	ident, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	if count > 0 {
		return 0, nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		if quoted[i], err = quoteIdent(c); err != nil {
			return 0, err
		}
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident, strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	for _, row := range rows {
		if _, err := q.ExecContext(ctx, stmt, row...); err != nil {
			return 0, fmt.Errorf("seeding %s: %w", table, err)
		}
	}
	return len(rows), nil
}

// seedReferenceData fills the languages, reward_cycle and settings tables on
// first start. Tables that already hold rows are left untouched.
func (b *Backend) seedReferenceData(ctx context.Context) error {
	now := b.timestamp()

	langs := make([][]any, 0, len(defaultLanguages))
	for _, l := range defaultLanguages {
		langs = append(langs, []any{l.Code, l.Name, l.NativeName, boolToInt(l.Active)})
	}
	var rewards [][]any
	for _, rd := range defaultRewardCycle() {
		rewards = append(rewards, []any{rd.Day, rd.Reward, boolToInt(rd.Bonus)})
	}
	flags := make([][]any, 0, len(defaultFlags))
	for _, f := range defaultFlags {
		flags = append(flags, []any{f.key, strconv.FormatBool(f.enabled), now})
	}

	seeds := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"languages", []string{"code", "name", "native_name", "is_active"}, langs},
		{"reward_cycle", []string{"day", "reward", "is_bonus"}, rewards},
		{"settings", []string{"key", "value", "updated_at"}, flags},
	}

	return b.withTx(ctx, func(q queryer) error {
		for _, s := range seeds {
			n, err := seedIfEmpty(ctx, q, s.table, s.columns, s.rows)
			if err != nil {
				return err
			}
			if n > 0 {
				b.logger.Info().Str("table", s.table).Int("rows", n).Msg("seeded reference data")
			}
		}
		return nil
	})
}

// RewardCycle returns the daily reward schedule ordered by day.
func (b *Backend) RewardCycle(ctx context.Context) ([]types.RewardDay, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := b.q.QueryContext(ctx, "SELECT day, reward, is_bonus FROM reward_cycle ORDER BY day")
	if err != nil {
		return nil, fmt.Errorf("reading reward cycle: %w", err)
	}
	defer rows.Close()

	var days []types.RewardDay
	for rows.Next() {
		var rd types.RewardDay
		var bonus int
		if err := rows.Scan(&rd.Day, &rd.Reward, &bonus); err != nil {
			return nil, fmt.Errorf("scanning reward cycle: %w", err)
		}
		rd.Bonus = bonus != 0
		days = append(days, rd)
	}
	return days, rows.Err()
}

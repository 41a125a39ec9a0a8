package energystore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"solarweb-backend/lib/scrapers/solaredge"
	"solarweb-backend/lib/timezone"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Open opens (and migrates) a reading database. Remote libsql DSNs
// are routed to the libsql driver, anything else is treated as a
// local sqlite path.
func Open(dsn string) (*sql.DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "wss://") ||
		strings.HasPrefix(dsn, "https://") {
		driver = "libsql"
	}
	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	_, err = database.Exec(Schema)
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type PushRequest struct {
	Equipment map[int64]solaredge.Equipment
	Spans     []solaredge.EnergySpan
}

// Push records a scrape. Spans for start times already on record
// are replaced, so re-polling an overlapping playback window never
// duplicates readings.
func (s Store) Push(ctx context.Context, req PushRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, equip := range req.Equipment {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO equipment (id, serial_number, display_name, kind, parent_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				serial_number = excluded.serial_number,
				display_name = excluded.display_name,
				kind = excluded.kind,
				parent_id = excluded.parent_id`,
			equip.Id, equip.SerialNumber, equip.DisplayName, equip.Kind().String(), equip.ParentId,
		)
		if err != nil {
			return err
		}
	}

	for _, span := range req.Spans {
		for equipmentId, wh := range span.Values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reading (equipment_id, start_time, wh)
				VALUES (?, ?, ?)
				ON CONFLICT (equipment_id, start_time) DO UPDATE SET wh = excluded.wh`,
				equipmentId, span.StartTime.Unix(), wh,
			)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

type Reading struct {
	StartTime time.Time
	Wh        float64
}

// Pull returns the recorded readings for one piece of equipment in
// [after, before), ordered by start time.
func (s Store) Pull(ctx context.Context, equipmentId int64, after, before time.Time) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_time, wh FROM reading
		WHERE equipment_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC`,
		equipmentId, after.Unix(), before.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var unix int64
		var wh float64
		err := rows.Scan(&unix, &wh)
		if err != nil {
			return nil, err
		}
		readings = append(readings, Reading{
			StartTime: time.Unix(unix, 0).In(timezone.Location),
			Wh:        wh,
		})
	}
	return readings, rows.Err()
}

// Latest returns the most recent span start time on record, or the
// zero time when nothing has been pushed yet.
func (s Store) Latest(ctx context.Context) (time.Time, error) {
	var unix sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(start_time) FROM reading`).Scan(&unix)
	if err != nil {
		return time.Time{}, err
	}
	if !unix.Valid {
		return time.Time{}, nil
	}
	return time.Unix(unix.Int64, 0).In(timezone.Location), nil
}

type EquipmentTotal struct {
	Equipment solaredge.Equipment
	TotalWh   float64
}

// DailyTotals sums production per inverter for the given day,
// feeding the daily report mailer.
func (s Store) DailyTotals(ctx context.Context, day time.Time) ([]EquipmentTotal, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, timezone.Location)
	end := start.AddDate(0, 0, 1)

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.serial_number, e.display_name, COALESCE(SUM(r.wh), 0)
		FROM equipment e
		JOIN reading r ON r.equipment_id = e.id
		WHERE e.kind = 'inverter' AND r.start_time >= ? AND r.start_time < ?
		GROUP BY e.id
		ORDER BY e.id ASC`,
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []EquipmentTotal
	for rows.Next() {
		var total EquipmentTotal
		err := rows.Scan(
			&total.Equipment.Id,
			&total.Equipment.SerialNumber,
			&total.Equipment.DisplayName,
			&total.TotalWh,
		)
		if err != nil {
			return nil, err
		}
		total.Equipment.Type = "INVERTER"
		totals = append(totals, total)
	}
	return totals, rows.Err()
}

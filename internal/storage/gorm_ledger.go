package storage

import (
	"flagwatch/backend/internal/models"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CaseEventRecord is one row of the active ledger in PostgreSQL.
// The embedded gorm.Model ID gives arrival order within an author.
type CaseEventRecord struct {
	gorm.Model

	// AuthorID keys the case record.
	AuthorID          string `gorm:"type:text;not null;index:idx_case_author"`
	AuthorDisplayName string `gorm:"type:text"`
	CommunityID       string `gorm:"type:text;index"`
	CommunityName     string `gorm:"type:text"`
	// ObservedAt is the event timestamp, not the row creation time.
	ObservedAt   time.Time      `gorm:"not null"`
	Content      string         `gorm:"type:text;not null"`
	MatchedTerms pq.StringArray `gorm:"type:text[]"`
	Risk         string         `gorm:"type:text;not null;index"`
	Link         string         `gorm:"type:text"`
	MessageID    string         `gorm:"type:text"`
	ChannelID    string         `gorm:"type:text"`
}

// TableName pins the active table name.
func (CaseEventRecord) TableName() string { return "case_events" }

// ArchivedCaseEventRecord has the same shape as CaseEventRecord in a separate table.
type ArchivedCaseEventRecord CaseEventRecord

// TableName pins the archive table name.
func (ArchivedCaseEventRecord) TableName() string { return "archived_case_events" }

func recordFromEvent(authorID string, ev models.ClassifiedEvent) CaseEventRecord {
	return CaseEventRecord{
		AuthorID:          authorID,
		AuthorDisplayName: ev.AuthorDisplayName,
		CommunityID:       ev.CommunityID,
		CommunityName:     ev.CommunityName,
		ObservedAt:        ev.Timestamp.UTC(),
		Content:           ev.Content,
		MatchedTerms:      pq.StringArray(ev.MatchedTerms),
		Risk:              string(ev.Risk),
		Link:              ev.Link,
		MessageID:         ev.MessageID,
		ChannelID:         ev.ChannelID,
	}
}

func (r CaseEventRecord) toEvent() models.ClassifiedEvent {
	matched := []string(r.MatchedTerms)
	if matched == nil {
		matched = []string{}
	}
	return models.ClassifiedEvent{
		CommunityID:       r.CommunityID,
		CommunityName:     r.CommunityName,
		AuthorID:          r.AuthorID,
		AuthorDisplayName: r.AuthorDisplayName,
		Timestamp:         r.ObservedAt.UTC(),
		Content:           r.Content,
		MatchedTerms:      matched,
		Risk:              models.RiskTier(r.Risk),
		Link:              r.Link,
		MessageID:         r.MessageID,
		ChannelID:         r.ChannelID,
	}
}

// GormCaseLedger stores cases in PostgreSQL. Appends are single inserts, so concurrent
// appends for one author cannot lose updates.
type GormCaseLedger struct {
	DB     *gorm.DB
	logger *logrus.Logger
}

// NewGormCaseLedger migrates both tables.
func NewGormCaseLedger(db *gorm.DB, logger *logrus.Logger) (*GormCaseLedger, error) {
	if err := db.AutoMigrate(&CaseEventRecord{}, &ArchivedCaseEventRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate case tables")
	}
	return &GormCaseLedger{DB: db, logger: logger}, nil
}

// Append implements CaseLedger.
func (l *GormCaseLedger) Append(authorID string, ev models.ClassifiedEvent) (int, error) {
	if err := models.ValidateID(authorID); err != nil {
		return 0, err
	}
	var count int64
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		rec := recordFromEvent(authorID, ev)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return tx.Model(&CaseEventRecord{}).Where("author_id = ?", authorID).Count(&count).Error
	})
	if err != nil {
		l.logger.WithError(err).WithField("author_id", authorID).Error("Failed to append case event")
		return 0, errors.Wrapf(err, "append case for %s", authorID)
	}
	return int(count), nil
}

// Read implements CaseLedger.
func (l *GormCaseLedger) Read(authorID string) ([]models.ClassifiedEvent, error) {
	if err := models.ValidateID(authorID); err != nil {
		return nil, err
	}
	var rows []CaseEventRecord
	if err := l.DB.Where("author_id = ?", authorID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "read case %s", authorID)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "case %s", authorID)
	}
	return toEvents(rows), nil
}

func toEvents(rows []CaseEventRecord) []models.ClassifiedEvent {
	out := make([]models.ClassifiedEvent, len(rows))
	for i, r := range rows {
		out[i] = r.toEvent()
	}
	return out
}

// Query implements CaseLedger. Filters run in SQL; the newest Limit rows are re-sorted
// into arrival order.
func (l *GormCaseLedger) Query(authorID string, f Filter) ([]models.ClassifiedEvent, error) {
	if err := models.ValidateID(authorID); err != nil {
		return nil, err
	}
	var total int64
	if err := l.DB.Model(&CaseEventRecord{}).Where("author_id = ?", authorID).Count(&total).Error; err != nil {
		return nil, errors.Wrapf(err, "query case %s", authorID)
	}
	if total == 0 {
		return nil, errors.Wrapf(ErrNotFound, "case %s", authorID)
	}

	q := l.DB.Where("author_id = ?", authorID)
	if f.Risk != "" {
		q = q.Where("risk = ?", string(f.Risk))
	}
	if f.Match != "" {
		q = q.Where("strpos(lower(content), lower(?)) > 0", f.Match)
	}
	if !f.After.IsZero() {
		q = q.Where("observed_at > ?", f.After)
	}
	if !f.Before.IsZero() {
		q = q.Where("observed_at < ?", f.Before)
	}
	q = q.Order("id desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []CaseEventRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "query case %s", authorID)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return toEvents(rows), nil
}

// Delete implements CaseLedger.
func (l *GormCaseLedger) Delete(authorID string) error {
	if err := models.ValidateID(authorID); err != nil {
		return err
	}
	res := l.DB.Unscoped().Where("author_id = ?", authorID).Delete(&CaseEventRecord{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete case %s", authorID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "case %s", authorID)
	}
	return nil
}

// Archive implements CaseLedger.
func (l *GormCaseLedger) Archive(authorID string) error {
	if err := models.ValidateID(authorID); err != nil {
		return err
	}
	return l.DB.Transaction(func(tx *gorm.DB) error {
		var rows []CaseEventRecord
		if err := tx.Where("author_id = ?", authorID).Order("id asc").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.Wrapf(ErrNotFound, "case %s", authorID)
		}
		archived := make([]ArchivedCaseEventRecord, len(rows))
		for i, r := range rows {
			r.Model = gorm.Model{}
			archived[i] = ArchivedCaseEventRecord(r)
		}
		if err := tx.Create(&archived).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("author_id = ?", authorID).Delete(&CaseEventRecord{}).Error
	})
}

// Lookup implements CaseLedger.
func (l *GormCaseLedger) Lookup(authorID string) ([]models.ClassifiedEvent, bool, error) {
	events, err := l.Read(authorID)
	if err == nil {
		return events, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	var rows []ArchivedCaseEventRecord
	if err := l.DB.Where("author_id = ?", authorID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, false, errors.Wrapf(err, "lookup case %s", authorID)
	}
	if len(rows) == 0 {
		return nil, false, errors.Wrapf(ErrNotFound, "case %s", authorID)
	}
	active := make([]CaseEventRecord, len(rows))
	for i, r := range rows {
		active[i] = CaseEventRecord(r)
	}
	return toEvents(active), true, nil
}

// Authors implements CaseLedger.
func (l *GormCaseLedger) Authors() ([]string, error) {
	var ids []string
	if err := l.DB.Model(&CaseEventRecord{}).Distinct("author_id").Order("author_id").Pluck("author_id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "list case authors")
	}
	return ids, nil
}

type summaryRow struct {
	AuthorID          string
	AuthorDisplayName string
	Count             int
}

// summarySQL picks the newest display name per author with DISTINCT ON.
const summarySQL = `
	SELECT DISTINCT ON (author_id)
		author_id,
		author_display_name,
		COUNT(*) OVER (PARTITION BY author_id) AS count
	FROM %s
	WHERE deleted_at IS NULL
	ORDER BY author_id, id DESC
`

// Summaries implements CaseLedger.
func (l *GormCaseLedger) Summaries(includeArchived bool) ([]models.CaseSummary, error) {
	out, err := l.summarize(CaseEventRecord{}.TableName(), false)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		archived, err := l.summarize(ArchivedCaseEventRecord{}.TableName(), true)
		if err != nil {
			return nil, err
		}
		out = append(out, archived...)
	}
	return out, nil
}

func (l *GormCaseLedger) summarize(table string, archived bool) ([]models.CaseSummary, error) {
	var rows []summaryRow
	if err := l.DB.Raw(fmt.Sprintf(summarySQL, table)).Scan(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "summarize %s", table)
	}
	out := make([]models.CaseSummary, len(rows))
	for i, r := range rows {
		name := r.AuthorDisplayName
		if name == "" {
			name = "Unknown"
		}
		out[i] = models.CaseSummary{AuthorID: r.AuthorID, DisplayName: name, Count: r.Count, Archived: archived}
	}
	return out, nil
}

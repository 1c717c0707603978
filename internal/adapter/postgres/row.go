package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/job"
)

// jobRow is the detection_jobs row layout.
type jobRow struct {
	ID        string    `db:"id"`
	Params    []byte    `db:"params"`
	Status    string    `db:"status"`
	Error     string    `db:"error"`
	Result    []byte    `db:"result"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toRow(j job.Job) (jobRow, error) {
	params, err := json.Marshal(j.Params)
	if err != nil {
		return jobRow{}, fmt.Errorf("encode params: %w", err)
	}
	row := jobRow{
		ID:        j.ID,
		Params:    params,
		Status:    string(j.Status),
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Result != nil {
		if row.Result, err = json.Marshal(j.Result); err != nil {
			return jobRow{}, fmt.Errorf("encode result: %w", err)
		}
	}
	return row, nil
}

func (r jobRow) toJob() (job.Job, error) {
	j := job.Job{
		ID:        r.ID,
		Status:    job.Status(r.Status),
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Params, &j.Params); err != nil {
		return job.Job{}, fmt.Errorf("decode params of job %s: %w", r.ID, err)
	}
	if len(r.Result) > 0 {
		var result domain.Result
		if err := json.Unmarshal(r.Result, &result); err != nil {
			return job.Job{}, fmt.Errorf("decode result of job %s: %w", r.ID, err)
		}
		j.Result = &result
	}
	return j, nil
}

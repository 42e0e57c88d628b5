package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/soaringjerry/Vox/internal/uploadqueue"
)

// Uploader adapts Upload for the background queue. Client errors (4xx)
// will not succeed on retry, so they are marked permanent.
func (c *Client) Uploader() uploadqueue.Uploader {
	return uploadqueue.UploaderFunc(func(ctx context.Context, job uploadqueue.Job) error {
		name := fmt.Sprintf("question-%d.%s", job.QuestionID, job.Extension)
		_, err := c.Upload(ctx, job.UserID, job.QuestionID, job.MIME, name, job.Data)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) ||
			(errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 408 && apiErr.Status != 429) {
			return uploadqueue.Permanent(err)
		}
		return err
	})
}

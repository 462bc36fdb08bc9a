package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/id"
	"github.com/listenupapp/readalong/internal/sanitize"
	"github.com/listenupapp/readalong/internal/sse"
)

func (s *Server) registerProcessingRoutes() {
	register(s.api, huma.Operation{
		OperationID: "processPDF",
		Method:      http.MethodPost,
		Path:        "/api/process_pdf",
		Summary:     "Start processing a PDF",
		Description: "Forwards the document to the processing service and records a job",
		Tags:        []string{"Documents"},
		Middlewares: s.rateLimited(s.services.ProcessLimiter),
	}, s.handleProcessPDF)

	register(s.api, huma.Operation{
		OperationID: "listJobs",
		Method:      http.MethodGet,
		Path:        "/api/jobs",
		Summary:     "List processing jobs",
		Description: "Returns the most recent processing jobs, newest first",
		Tags:        []string{"Documents"},
	}, s.handleListJobs)

	register(s.api, huma.Operation{
		OperationID: "getJob",
		Method:      http.MethodGet,
		Path:        "/api/jobs/{id}",
		Summary:     "Get a processing job",
		Tags:        []string{"Documents"},
	}, s.handleGetJob)
}

// ProcessPDFInput names the document to process.
type ProcessPDFInput struct {
	Filename string `query:"filename" required:"true" doc:"PDF file name in the input directory"`
}

// ProcessPDFOutput acknowledges the request.
type ProcessPDFOutput struct {
	Body *domain.ProcessResult
}

func (s *Server) handleProcessPDF(ctx context.Context, input *ProcessPDFInput) (*ProcessPDFOutput, error) {
	name, err := sanitize.Filename(input.Filename, ".pdf")
	if err != nil {
		return nil, errors.Validation("Must be a PDF file")
	}
	if s.services.PDF == nil {
		return nil, errors.Internal(msgProcessFailed)
	}

	job, err := s.createJob(ctx, name)
	if err != nil {
		return nil, err
	}

	result, err := s.services.PDF.Process(ctx, name)
	if err != nil {
		s.logger.Warn("processing request failed", "filename", name, "error", err)
		s.finishJob(ctx, job, domain.JobFailed, err.Error())
		s.emit(sse.NewJobFailedEvent(job))

		var te *client.TransportError
		if errors.As(err, &te) && te.Status != 0 {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeInternal, msgProcessFailed)
	}

	s.finishJob(ctx, job, domain.JobStarted, "")
	s.emit(sse.NewJobCreatedEvent(job))

	result.JobID = job.ID
	return &ProcessPDFOutput{Body: result}, nil
}

// createJob records a pending job. Without a job store the job lives only in
// this request.
func (s *Server) createJob(ctx context.Context, filename string) (*domain.Job, error) {
	jobID, err := id.Generate(id.PrefixJob)
	if err != nil {
		return nil, err
	}
	job := &domain.Job{
		ID:       jobID,
		Filename: filename,
		Status:   domain.JobPending,
	}
	if bookID, err := sanitize.BookID(filename[:len(filename)-len(".pdf")]); err == nil {
		job.BookID = bookID
	}

	if s.services.Jobs != nil {
		if err := s.services.Jobs.CreateJob(ctx, job); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func (s *Server) finishJob(ctx context.Context, job *domain.Job, status domain.JobStatus, msg string) {
	job.Status = status
	job.Error = msg
	if s.services.Jobs == nil {
		return
	}
	if err := s.services.Jobs.UpdateJobStatus(ctx, job.ID, status, msg); err != nil {
		s.logger.Error("failed to update job", "job_id", job.ID, "status", status, "error", err)
	}
}

func (s *Server) emit(event sse.Event) {
	if s.services.SSE != nil {
		s.services.SSE.Emit(event)
	}
}

// ListJobsInput pages the job list.
type ListJobsInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum number of jobs"`
}

// JobsOutput lists processing jobs.
type JobsOutput struct {
	Body struct {
		Jobs []*domain.Job `json:"jobs"`
	}
}

func (s *Server) handleListJobs(ctx context.Context, input *ListJobsInput) (*JobsOutput, error) {
	out := &JobsOutput{}
	out.Body.Jobs = []*domain.Job{}
	if s.services.Jobs == nil {
		return out, nil
	}

	jobs, err := s.services.Jobs.ListJobs(ctx, input.Limit)
	if err != nil {
		return nil, err
	}
	if jobs != nil {
		out.Body.Jobs = jobs
	}
	return out, nil
}

// JobIDInput identifies a job.
type JobIDInput struct {
	ID string `path:"id"`
}

// JobOutput is one processing job.
type JobOutput struct {
	Body *domain.Job
}

func (s *Server) handleGetJob(ctx context.Context, input *JobIDInput) (*JobOutput, error) {
	if s.services.Jobs == nil {
		return nil, errors.NotFoundf("Job '%s' not found", input.ID)
	}
	job, err := s.services.Jobs.GetJob(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

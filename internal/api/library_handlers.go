package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readalong/internal/domain"
)

func (s *Server) registerLibraryRoutes() {
	register(s.api, huma.Operation{
		OperationID: "listAudioSources",
		Method:      http.MethodGet,
		Path:        "/api/audio_sources",
		Summary:     "List audio sources",
		Tags:        []string{"Audio"},
	}, s.handleListSources)

	register(s.api, huma.Operation{
		OperationID: "listAudio",
		Method:      http.MethodGet,
		Path:        "/api/list_audio",
		Summary:     "List audio files",
		Description: "Lists the WAV files of an audio source with their probed durations",
		Tags:        []string{"Audio"},
	}, s.handleListAudio)

	register(s.api, huma.Operation{
		OperationID: "listAudiobooks",
		Method:      http.MethodGet,
		Path:        "/api/audiobooks",
		Summary:     "List audiobooks",
		Description: "Lists every audiobook with a manifest and its processing progress",
		Tags:        []string{"Audiobooks"},
	}, s.handleListAudiobooks)

	register(s.api, huma.Operation{
		OperationID: "getAudiobookStatus",
		Method:      http.MethodGet,
		Path:        "/api/audiobook/{id}/status",
		Summary:     "Get audiobook manifest",
		Description: "Returns the manifest with the ready chunks and recomputed progress",
		Tags:        []string{"Audiobooks"},
	}, s.handleGetStatus)

	register(s.api, huma.Operation{
		OperationID: "listAvailablePDFs",
		Method:      http.MethodGet,
		Path:        "/api/available_pdfs",
		Summary:     "List PDFs available for processing",
		Tags:        []string{"Documents"},
	}, s.handleListPDFs)
}

// SourcesOutput lists the audio sources.
type SourcesOutput struct {
	Body struct {
		Sources []string `json:"sources"`
	}
}

func (s *Server) handleListSources(_ context.Context, _ *struct{}) (*SourcesOutput, error) {
	out := &SourcesOutput{}
	out.Body.Sources = s.services.Library.Sources()
	return out, nil
}

// ListAudioInput selects an audio source.
type ListAudioInput struct {
	Source string `query:"source" default:"audiobooks" doc:"Audio source name"`
}

// ListAudioOutput lists the files of a source.
type ListAudioOutput struct {
	Body struct {
		Files  []domain.AudioFile `json:"files"`
		Source string             `json:"source"`
	}
}

func (s *Server) handleListAudio(ctx context.Context, input *ListAudioInput) (*ListAudioOutput, error) {
	files, err := s.services.Library.ListAudio(ctx, input.Source)
	if err != nil {
		return nil, err
	}
	out := &ListAudioOutput{}
	out.Body.Files = files
	out.Body.Source = input.Source
	return out, nil
}

// AudiobooksOutput lists the audiobooks.
type AudiobooksOutput struct {
	Body struct {
		Audiobooks []domain.AudiobookSummary `json:"audiobooks"`
	}
}

func (s *Server) handleListAudiobooks(ctx context.Context, _ *struct{}) (*AudiobooksOutput, error) {
	books, err := s.services.Library.Audiobooks(ctx)
	if err != nil {
		return nil, err
	}
	out := &AudiobooksOutput{}
	out.Body.Audiobooks = books
	return out, nil
}

// BookIDInput identifies an audiobook.
type BookIDInput struct {
	ID string `path:"id" doc:"Audiobook id (its directory name)"`
}

// StatusOutput is an audiobook manifest.
type StatusOutput struct {
	Body *domain.Manifest
}

func (s *Server) handleGetStatus(_ context.Context, input *BookIDInput) (*StatusOutput, error) {
	m, err := s.services.Library.Manifest(input.ID)
	if err != nil {
		return nil, err
	}
	return &StatusOutput{Body: m}, nil
}

// PDFsOutput lists the documents available for processing.
type PDFsOutput struct {
	Body struct {
		AvailablePDFs []domain.PDFInfo `json:"available_pdfs"`
	}
}

func (s *Server) handleListPDFs(ctx context.Context, _ *struct{}) (*PDFsOutput, error) {
	pdfs, err := s.services.Library.PDFs(ctx)
	if err != nil {
		return nil, err
	}
	out := &PDFsOutput{}
	out.Body.AvailablePDFs = pdfs
	return out, nil
}

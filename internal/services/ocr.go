package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"classroom-backend/internal/logger"
	"classroom-backend/internal/models"
)

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// OCRService reads handwritten or printed papers through Cloud Vision
// document text detection. Documents with a text layer skip Vision.
type OCRService struct {
	annotate annotateFunc
	close    func() error
	language string
	log      *logger.Logger
}

func NewOCRService(ctx context.Context, language string, log *logger.Logger) (*OCRService, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, gcpClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	annotate := func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}
	return newOCRService(annotate, client.Close, language, log), nil
}

func newOCRService(annotate annotateFunc, closeFn func() error, language string, log *logger.Logger) *OCRService {
	return &OCRService{
		annotate: annotate,
		close:    closeFn,
		language: language,
		log:      log.With("service", "ocr"),
	}
}

func (s *OCRService) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Extract returns the text of one input.
func (s *OCRService) Extract(ctx context.Context, in models.RawInput) (string, error) {
	if len(in.Data) > 0 && hasTextLayer(in.MimeType) {
		return documentText(in.Data, in.MimeType)
	}

	img := &visionpb.Image{}
	switch {
	case len(in.Data) > 0:
		img.Content = in.Data
	case in.URL != "":
		img.Source = &visionpb.ImageSource{ImageUri: in.URL}
	default:
		return "", fmt.Errorf("input %q is empty", in.Name)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    img,
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	if s.language != "" {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: []string{s.language}}
	}

	resp, err := s.annotate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", fmt.Errorf("vision returned no response for %q", in.Name)
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation == nil {
		return "", fmt.Errorf("no text detected in %q", in.Name)
	}

	text := normalizeExtractedText(r0.FullTextAnnotation.Text)
	if text == "" {
		return "", fmt.Errorf("no text detected in %q", in.Name)
	}
	s.log.Debug("ocr finished", "input", in.Name, "chars", len(text), "pages", len(r0.FullTextAnnotation.Pages))
	return text, nil
}

// gcpClientOptions reads service account credentials as inline JSON or a
// file path; without either the default credential chain applies.
func gcpClientOptions() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

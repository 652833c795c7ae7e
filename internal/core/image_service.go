package core

import (
	"context"
	"fmt"
	"log"

	"github.com/SarajZimba/chatbot-llm/internal/store"
)

// ImageUploadResult is the outcome of an image upload: the stored record id,
// what the OCR read, and the model's explanation of it.
type ImageUploadResult struct {
	ImageID      string `json:"image_id"`
	DetectedText string `json:"detected_text"`
	Explanation  string `json:"llama_answer"`
}

// ImageService runs OCR over uploaded images, keeps the detected text and
// answers follow-up questions against it.
type ImageService struct {
	dbStore *store.SQLiteStore
	ocr     OCRReader
	rag     *RAGService
}

func NewImageService(db *store.SQLiteStore, ocr OCRReader, rag *RAGService) *ImageService {
	return &ImageService{
		dbStore: db,
		ocr:     ocr,
		rag:     rag,
	}
}

// Upload reads the image's text, stores it and asks the model to explain
// it. OCR failures propagate; explanation failures degrade inside the
// result.
func (s *ImageService) Upload(ctx context.Context, username, filename, imagePath string) (*ImageUploadResult, error) {
	detected, err := s.ocr.ReadText(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	imageID, err := s.dbStore.SaveImageText(username, filename, detected)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"The following text was read from an uploaded image. Explain briefly what it says.\n\n"+
			"Text:\n%s\n\nExplanation:",
		detected,
	)
	explanation, err := s.rag.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("Image explanation failed for %s: %v", imageID, err)
		explanation = couldNotAnswer
	}

	return &ImageUploadResult{
		ImageID:      imageID,
		DetectedText: detected,
		Explanation:  explanation,
	}, nil
}

// Answer answers a question against the text previously detected in the
// image, under the same strict-context prompt the document paths use.
func (s *ImageService) Answer(ctx context.Context, imageID, question string) (string, error) {
	detected, err := s.dbStore.LoadImageText(imageID)
	if err != nil {
		return "", err
	}
	return s.rag.GenerateAnswer(ctx, detected, question), nil
}

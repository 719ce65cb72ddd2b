package ingest

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/ingesterr"
)

var (
	vOnce      sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

func validatorInstance() (*validator.Validate, ut.Translator) {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		translator, _ = uni.GetTranslator("en")

		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(validate, translator)
	})
	return validate, translator
}

// Validate checks a request before any remote call is made: the variant's
// required fields, asset kinds, text track languages, and that every local
// file exists.
func Validate(req Request) error {
	switch r := req.(type) {
	case NewPullRequest:
		if err := validateVideo(r.Video); err != nil {
			return err
		}
		return validateOptions(r.Ingest)
	case NewPushRequest:
		if err := validateVideo(r.Video); err != nil {
			return err
		}
		if err := validateOptions(r.Ingest); err != nil {
			return err
		}
		if err := validateFiles(r.Files); err != nil {
			return err
		}
		return validateTextTracks(r.TextTracks)
	case ExistingPullRequest:
		if strings.TrimSpace(r.VideoID) == "" {
			return ingesterr.Validation(ingesterr.CodeNoVideoID, "video_id is required for replace and retranscode requests")
		}
		return validateOptions(r.Ingest)
	case ExistingPushRequest:
		if strings.TrimSpace(r.VideoID) == "" {
			return ingesterr.Validation(ingesterr.CodeNoVideoID, "video_id is required for replace and retranscode requests")
		}
		if err := validateOptions(r.Ingest); err != nil {
			return err
		}
		return validateFiles(r.Files)
	case nil:
		return ingesterr.Validation(ingesterr.CodeInvalidIngestData, "no request given")
	default:
		return ingesterr.Validation(ingesterr.CodeInvalidIngestData, "unsupported request type %T", req)
	}
}

func validateVideo(v brightcove.VideoMetadata) error {
	return structError(ingesterr.CodeInvalidVideoData, "video", v)
}

func validateOptions(o brightcove.IngestOptions) error {
	return structError(ingesterr.CodeInvalidIngestData, "ingest", o)
}

func validateFiles(files FileMap) error {
	if len(files) == 0 {
		return ingesterr.Validation(ingesterr.CodeInvalidFilesData, "a push ingest needs at least one file")
	}
	seen := make(map[AssetKind]bool, len(files))
	for i, a := range files {
		if _, err := contentTypeFor(a.Kind); err != nil {
			return err
		}
		if seen[a.Kind] {
			return ingesterr.Validation(ingesterr.CodeInvalidFilesData, "files: %s declared more than once", a.Kind)
		}
		seen[a.Kind] = true
		if err := structError(ingesterr.CodeInvalidFilePath, fmt.Sprintf("files[%d]", i), a); err != nil {
			return err
		}
		if err := checkFile(a.Path, ingesterr.CodeInvalidFilePath); err != nil {
			return err
		}
	}
	return nil
}

func validateTextTracks(tracks []TextTrack) error {
	for i, tt := range tracks {
		if strings.TrimSpace(tt.SrcLang) == "" {
			return ingesterr.Validation(ingesterr.CodeNoSrcLangForTextTrack, "text_tracks[%d]: srclang is required", i)
		}
		if err := structError(ingesterr.CodeInvalidTextTracksData, fmt.Sprintf("text_tracks[%d]", i), tt); err != nil {
			return err
		}
		if err := checkFile(tt.Path, ingesterr.CodeInvalidTextTrackPath); err != nil {
			return err
		}
	}
	return nil
}

// structError runs struct-tag validation and returns the first failure as a
// validation error prefixed with where.
func structError(code int, where string, v any) error {
	val, trans := validatorInstance()
	err := val.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return ingesterr.Validation(code, "%s: %s", where, fe.Translate(trans))
	}
	return ingesterr.Validation(code, "%s: %v", where, err)
}

func checkFile(path string, code int) error {
	info, err := os.Stat(path)
	if err != nil {
		e := ingesterr.Validation(code, "cannot read %s", path)
		e.Err = err
		return e
	}
	if !info.Mode().IsRegular() {
		return ingesterr.Validation(code, "%s is not a regular file", path)
	}
	return nil
}

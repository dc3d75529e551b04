package handler

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/service"
)

const msgBodyNotObject = "Body must be a JSON object."

// bindingFields turns a ShouldBindJSON failure into a reason per request
// field. It returns nil when the body as a whole is unusable.
func bindingFields(err error) map[string]string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		fields := make(map[string]string, len(vErrs))
		for _, fe := range vErrs {
			switch {
			case strings.HasPrefix(fe.StructField(), "UserIDs"):
				if fe.Tag() == "gt" {
					fields[service.FieldUserIDs] = "User ID must be a positive integer."
				} else {
					fields[service.FieldUserIDs] = "User IDs cannot be empty."
				}
			case fe.StructField() == "QuestionID":
				fields[service.FieldQuestionID] = "Question ID cannot be empty."
			}
		}
		if len(fields) == 0 {
			return nil
		}
		return fields
	}

	if errors.Is(err, domain.ErrUserIDNotInteger) {
		return map[string]string{service.FieldUserIDs: "User ID must be an integer."}
	}

	// Field is empty when the body itself has the wrong type.
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case service.FieldQuestionID:
			return map[string]string{service.FieldQuestionID: "Question ID must be a string."}
		case service.FieldQuestionLangSlug:
			return map[string]string{service.FieldQuestionLangSlug: "Question language slug must be a string."}
		}
	}
	return nil
}

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Skufu/thyrocheck/internal/thyroid"
)

var tagNameOnce sync.Once

// useJSONFieldNames makes validation errors report json field names.
func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes the body into dst and writes the error response when it
// fails. Decode failures are 400, rule violations 422.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, "payload_too_large")
	case errors.As(err, &invalid):
		details := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			details = append(details, describe(fe))
		}
		validationFailed(c, details)
	default:
		abortWithError(c, http.StatusBadRequest, "invalid_payload")
	}
	return false
}

func validationFailed(c *gin.Context, details []string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"error":   "validation_failed",
		"details": details,
	})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// predictionRequest uses pointers so a missing lab value is distinguishable
// from a zero reading.
type predictionRequest struct {
	Age *float64 `json:"age" binding:"required,gte=0,lte=130"`
	Sex *string  `json:"sex" binding:"required"`
	TSH *float64 `json:"tsh" binding:"required,gte=0"`
	T3  *float64 `json:"t3" binding:"required,gte=0"`
	TT4 *float64 `json:"tt4" binding:"required,gte=0"`
	T4U *float64 `json:"t4u" binding:"required,gte=0"`

	OnThyroxine             bool `json:"onThyroxine"`
	QueryOnThyroxine        bool `json:"queryOnThyroxine"`
	OnAntithyroidMedication bool `json:"onAntithyroidMedication"`
	Sick                    bool `json:"sick"`
	Pregnant                bool `json:"pregnant"`
	ThyroidSurgery          bool `json:"thyroidSurgery"`
	I131Treatment           bool `json:"i131Treatment"`
	QueryHypothyroid        bool `json:"queryHypothyroid"`
	QueryHyperthyroid       bool `json:"queryHyperthyroid"`
	Lithium                 bool `json:"lithium"`
	Goitre                  bool `json:"goitre"`
	Tumor                   bool `json:"tumor"`
	Hypopituitary           bool `json:"hypopituitary"`
	Psych                   bool `json:"psych"`
}

// record converts a bound request; the only check left after binding is sex.
func (r predictionRequest) record() (thyroid.PatientRecord, []string) {
	sex, err := thyroid.ParseSex(*r.Sex)
	if err != nil {
		return thyroid.PatientRecord{}, []string{"sex must be one of M, male, F, female"}
	}
	return thyroid.PatientRecord{
		Age: *r.Age,
		Sex: sex,
		TSH: *r.TSH,
		T3:  *r.T3,
		TT4: *r.TT4,
		T4U: *r.T4U,

		OnThyroxine:             r.OnThyroxine,
		QueryOnThyroxine:        r.QueryOnThyroxine,
		OnAntithyroidMedication: r.OnAntithyroidMedication,
		Sick:                    r.Sick,
		Pregnant:                r.Pregnant,
		ThyroidSurgery:          r.ThyroidSurgery,
		I131Treatment:           r.I131Treatment,
		QueryHypothyroid:        r.QueryHypothyroid,
		QueryHyperthyroid:       r.QueryHyperthyroid,
		Lithium:                 r.Lithium,
		Goitre:                  r.Goitre,
		Tumor:                   r.Tumor,
		Hypopituitary:           r.Hypopituitary,
		Psych:                   r.Psych,
	}, nil
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Age      int    `json:"age" binding:"gte=0,lte=130"`
	Sex      string `json:"sex"`
	Location string `json:"location" binding:"max=200"`
}

type healthRecordRequest struct {
	RecordType  string `json:"recordType"`
	Title       string `json:"title" binding:"max=200"`
	Description string `json:"description" binding:"max=5000"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type hospitalSearchRequest struct {
	Location string `json:"location" binding:"required,max=200"`
}

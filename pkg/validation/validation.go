package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// slugPattern はスラッグとして許可する文字列。
	slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	// passwordPattern はパスワードとして許可する文字集合。
	passwordPattern = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]*$`)
)

// validate はパッケージ共通の検証器。validator.Validateは並行利用に対して安全。
var validate = mustNew()

// Messages はフィールドとタグの組（"field.tag"）ごとの独自エラーメッセージ。
type Messages map[string]string

// FieldError は1フィールド分の検証エラー。
type FieldError struct {
	// Field はJSON名でのフィールド名。
	Field string `json:"field"`
	// Tag は失敗した検証ルール。
	Tag string `json:"tag"`
	// Message は利用者向けのメッセージ。
	Message string `json:"message"`
}

// Error は検証エラーの集合。
type Error struct {
	// Fields はフィールドごとの検証エラー。
	Fields []FieldError `json:"fields"`
}

// Error はエラーメッセージを返す。
func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "入力内容が不正です: " + strings.Join(msgs, "; ")
}

// Message は指定フィールドの最初のエラーメッセージを返す。エラーがなければ空文字列。
func (e *Error) Message(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// Has は指定フィールドにエラーがあるかどうかを返す。
func (e *Error) Has(field string) bool {
	return e.Message(field) != ""
}

// New はカスタムルールを登録した検証器を生成する。
// 登録するルール: slug, password_charset
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("slugルールの登録に失敗: %w", err)
	}
	if err := v.RegisterValidation("password_charset", func(fl validator.FieldLevel) bool {
		return passwordPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("password_charsetルールの登録に失敗: %w", err)
	}
	return v, nil
}

func mustNew() *validator.Validate {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validator はパッケージ共通の検証器を返す。ginのバインディングと共有する場合に使う。
func Validator() *validator.Validate {
	return validate
}

// Struct は構造体を検証する。検証エラーは *Error に変換して返す。
// messagesで"field.tag"ごとのメッセージを上書きできる。
func Struct(s any, messages Messages) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("検証に失敗: %w", err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fieldPath(fe)
		msg, ok := messages[field+"."+fe.Tag()]
		if !ok {
			msg = defaultMessage(field, fe)
		}
		out.Fields = append(out.Fields, FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Message: msg,
		})
	}
	return out
}

// MatchesSlug はスラッグとして妥当かどうかを返す。
func MatchesSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// fieldPath はトップレベル構造体名を除いたフィールドのパスを返す（例: "modules[0].title"）。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// jsonFieldName はJSONタグ名をフィールド名として使う。
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// defaultMessage はタグごとの既定メッセージを生成する。
func defaultMessage(field string, fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return field + "は必須です"
	case "email":
		return field + "の形式が不正です"
	case "url", "http_url":
		return field + "は有効なURLである必要があります"
	case "slug":
		return field + "は小文字の英数字とハイフンのみ使用できます"
	case "password_charset":
		return field + "に使用できない文字が含まれています"
	case "oneof":
		return fmt.Sprintf("%sは次のいずれかである必要があります: %s", field, fe.Param())
	case "min":
		if isString {
			return fmt.Sprintf("%sは%s文字以上である必要があります", field, fe.Param())
		}
		return fmt.Sprintf("%sは%s以上である必要があります", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%sは%s文字以下である必要があります", field, fe.Param())
		}
		return fmt.Sprintf("%sは%s以下である必要があります", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%sは%sより大きい必要があります", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%sは%s以上である必要があります", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%sは%s以下である必要があります", field, fe.Param())
	}
	return fmt.Sprintf("%sが検証ルール %s を満たしていません", field, fe.Tag())
}

package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var fieldLabels = map[string]string{
	"Email":       "メールアドレス",
	"Password":    "パスワード",
	"NewPassword": "新しいパスワード",
	"Phone":       "電話番号",
	"UserType":    "ユーザー種別",
	"Token":       "トークン",
	"Action":      "操作",
	"CardID":      "名刺ID",
	"Status":      "ステータス",
	"ExistingURL": "既存の名刺URL",
	"CompanyName": "会社名",
	"LastName":    "姓",
	"FirstName":   "名",
	"MobilePhone": "携帯電話番号",
	"BirthDate":   "生年月日",
}

// ValidateStruct runs validator tags on a request DTO and returns the first
// failure as a user-facing Japanese message.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%sは必須です", label)
	case "email":
		return fmt.Errorf("%sの形式が正しくありません", label)
	case "min":
		return fmt.Errorf("%sは%s文字以上で入力してください", label, fe.Param())
	case "max":
		return fmt.Errorf("%sは%s文字以内で入力してください", label, fe.Param())
	case "oneof":
		return fmt.Errorf("%sの値が不正です", label)
	default:
		return fmt.Errorf("%sが不正です", label)
	}
}

package user

import (
	"io"
	"log"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia/lms/core"
)

type discardLogger struct{ *log.Logger }

func (l discardLogger) Debug(msg string, args ...interface{}) {}
func (l discardLogger) Info(msg string, args ...interface{})  {}
func (l discardLogger) Warn(msg string, args ...interface{})  {}
func (l discardLogger) Error(msg string, args ...interface{}) {}
func (l discardLogger) Fatal(msg string, args ...interface{}) { l.Logger.Fatal(msg) }

func init() {
	LoadCommonPasswords(discardLogger{log.New(io.Discard, "", 0)})
}

func Test_passwordPolicyTag(t *testing.T) {
	attrs := []string{"john_doe", "John Doe", "john.doe@mail.cd"}
	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "similar to username", pwd: "john_doe1", want: pwdAttrSimTag},
		{name: "similar to email part", pwd: "johndoe!", want: pwdAttrSimTag},
		{name: "common", pwd: "Password", want: pwdNoCommonTag},
		{name: "common, case insensitive", pwd: "QWERTYUIOP", want: pwdNoCommonTag},
		{name: "valid", pwd: "Tr1cky-P@ssw0rd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passwordPolicyTag(tt.pwd, attrs...))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	usr := User{Username: "hero", FullName: "Super Hero", Email: "hero@test.cd"}

	err := ValidatePassword("new_password", "short", usr)
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, []core.FieldError{{Field: "new_password", Error: pwdMinLenText}}, verr.Fields)

	assert.NoError(t, ValidatePassword("new_password", "Tr1cky-P@ssw0rd", usr))
}

func TestNewUser_Validate_passwordPolicy(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	nu := NewUser{Username: " Hero ", Email: "HERO@test.cd", FullName: "Super Hero", Password: "12345678"}
	nu.Clean()
	assert.Equal(t, "hero", nu.Username)
	assert.Equal(t, "hero@test.cd", nu.Email)

	err := validate.Struct(nu)
	require.Error(t, err)
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	require.Len(t, verrs, 1)
	assert.Equal(t, pwdNotAllNumTag, verrs[0].Tag())
	assert.Equal(t, pwdNotAllNumText, verrs[0].Translate(translator))

	nu.Password = "Tr1cky-P@ssw0rd"
	assert.NoError(t, validate.Struct(nu))
}

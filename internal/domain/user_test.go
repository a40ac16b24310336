package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPhone(t *testing.T) {
	valid := []string{
		"+15005550006",
		"15005550006",
		"+442071838750",
		"+8613800138000",
	}
	for _, phone := range valid {
		assert.True(t, ValidPhone(phone), phone)
	}

	invalid := []string{
		"",
		"+0123456789",   // 首位不能为 0
		"0123456789",
		"+1",            // 太短
		"+123456789012345678", // 超过 15 位
		"555-0100",
		"not a phone",
	}
	for _, phone := range invalid {
		assert.False(t, ValidPhone(phone), phone)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RolePatient.Valid())
	assert.True(t, RoleNurse.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("superuser").Valid())
}

func TestFormStatusTerminal(t *testing.T) {
	assert.False(t, FormPending.Terminal())
	assert.False(t, FormInProgress.Terminal())
	assert.True(t, FormResolved.Terminal())
	assert.True(t, FormCancelled.Terminal())
}

func TestFormParticipant(t *testing.T) {
	f := &Form{PatientID: "patient-1", NurseID: "nurse-1"}
	assert.True(t, f.Participant("patient-1"))
	assert.True(t, f.Participant("nurse-1"))
	assert.False(t, f.Participant("admin-1"))
	assert.False(t, f.Participant(""))
}

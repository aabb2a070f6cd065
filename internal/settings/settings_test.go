package settings

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettings_ReadDotenv(t *testing.T) {
	t.Run("success - .env file is read into env variables", func(t *testing.T) {
		// arrange
		testDotEnvFile := ".env.test"
		f, err := os.Create(testDotEnvFile)
		if err != nil {
			t.Error(err)
		}
		lines := []string{
			`#COMMENTED=asdf`,
			`SIMPLE_CD_TEST=1234`,
			``,
			`SIMPLE_CD_TEST2= 2345 `,
		}
		for _, line := range lines {
			f.Write([]byte(line + "\n"))
		}
		f.Close()
		defer os.Remove(testDotEnvFile)

		// act
		ReadDotenv(testDotEnvFile)

		// assert
		assert.Equal(t, os.Getenv("SIMPLE_CD_TEST"), "1234")
		assert.Equal(t, os.Getenv("SIMPLE_CD_TEST2"), "2345")
	})
}

func TestSettings_SSHTarget(t *testing.T) {
	t.Run("user@host target is split with port appended", func(t *testing.T) {
		// arrange
		as := &AppSettings{SSHTarget: "ubuntu@10.0.0.5", SSHPort: "2222"}

		// assert
		assert.Equal(t, "ubuntu", as.SSHUser())
		assert.Equal(t, "10.0.0.5:2222", as.SSHHost())
		assert.Equal(t, "ssh://ubuntu@10.0.0.5:2222", as.DockerHost())
	})
	t.Run("bare host keeps explicit port", func(t *testing.T) {
		// arrange
		as := &AppSettings{SSHTarget: "10.0.0.5:22", SSHPort: "2222"}

		// assert
		assert.Equal(t, "10.0.0.5:22", as.SSHHost())
	})
}

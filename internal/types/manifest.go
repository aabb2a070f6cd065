package types

import (
	"os"

	"github.com/goccy/go-yaml"
)

// DeployManifest describes the application this panel deploys: where
// its checkout lives, how it is built and which images end up on the
// deployment target. Read once at startup from deploy.yml.
type DeployManifest struct {
	ProjectName string   `yaml:"project_name"`
	BackendDir  string   `yaml:"backend_dir"`
	ComposeDir  string   `yaml:"compose_dir"`
	ComposeFile string   `yaml:"compose_file"`
	Images      []string `yaml:"images"`
	UseSudo     bool     `yaml:"use_sudo"`
	EnvFile     string   `yaml:"env_file"`
	EnvContent  string   `yaml:"env_content"`
}

func ReadDeployManifest(path string) (*DeployManifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := new(DeployManifest)
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, err
	}
	if m.ComposeFile == "" {
		m.ComposeFile = "docker-compose.prod.yaml"
	}
	return m, nil
}

// PrimaryImage is the image recorded on the build document; the first
// manifest image by convention.
func (m *DeployManifest) PrimaryImage() string {
	if len(m.Images) == 0 {
		return ""
	}
	return m.Images[0]
}

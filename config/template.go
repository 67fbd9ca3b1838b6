package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# scriptloc configuration
#
# provider: openai | groq | ollama | custom-openai
provider: openai
model: gpt-3.5-turbo
# base_url: https://api.openai.com/v1
# proxy: http://127.0.0.1:8080
timeout: 2m

# Maximum number of characters sent per request.
chunk_size: 3500

# Rate-limited requests are retried with a fixed delay.
retry:
  max_attempts: 5
  delay: 20s

# requests_per_minute: 0
# prompts_file: prompts.json
# ui_language: en

server:
  listen: ":8501"
  max_upload_mb: 10
  # cors_origins:
  #   - http://localhost:3000

output:
  filename: "{target_language}_demo_script.docx"
`

const envTemplate = `# API key used by scriptloc. Keep this file out of version control.
OPENAI_API_KEY=
`

// WriteTemplates writes a commented .scriptloc.yaml and an API_key.env to
// dir. Existing files are left untouched. It returns the files written.
func WriteTemplates(dir string) ([]string, error) {
	files := []struct {
		name string
		body string
		perm os.FileMode
	}{
		{FileName, configTemplate, 0644},
		{EnvFiles[0], envTemplate, 0600},
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(f.body), f.perm); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

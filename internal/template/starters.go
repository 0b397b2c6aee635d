package template

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultStarters is the built-in template gallery.
const DefaultStarters = `
- name: Daily digest to Discord
  description: Post a message to a Discord channel every morning.
  trigger:
    service: timer
    event: every_day
  actions:
    - service: discord
      event: send_message

- name: GitHub issues to Gmail
  description: Email yourself whenever a new issue is opened on a repository.
  trigger:
    service: github
    event: new_issue
  actions:
    - service: gmail
      event: send_email

- name: Starred mail to Drive
  description: Save starred emails as files in Google Drive.
  trigger:
    service: gmail
    event: email_starred
  actions:
    - service: google-drive
      event: create_file

- name: Liked songs to playlist
  description: Copy every liked Spotify track into a playlist.
  trigger:
    service: spotify
    event: track_liked
  actions:
    - service: spotify
      event: add_to_playlist
`

// Starters returns the built-in templates.
func Starters() ([]File, error) {
	var files []File
	if err := yaml.Unmarshal([]byte(DefaultStarters), &files); err != nil {
		return nil, fmt.Errorf("decoding starters: %w", err)
	}
	return files, nil
}

// Starter returns the built-in template with the given name or its slug.
func Starter(name string) (*File, error) {
	files, err := Starters()
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Name == name || Slug(files[i].Name) == name {
			return &files[i], nil
		}
	}
	return nil, fmt.Errorf("no starter named %q", name)
}

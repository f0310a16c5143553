package testing

// WithFiles pre-populates the machine's filesystem with files. Keys
// are paths, values are file contents.
func WithFiles(client *MockClient, files map[string]string) {
	for path, content := range files {
		_ = client.GetFS().WriteFile(path, []byte(content))
	}
}

// WithDirs pre-populates the machine's filesystem with directories.
func WithDirs(client *MockClient, dirs []string) {
	for _, dir := range dirs {
		_ = client.GetFS().MkdirAll(dir)
	}
}

// WithAuthorizedKey sets up the machine as if a public key had been
// installed on it, the state ssh-copy-id leaves behind.
func WithAuthorizedKey(client *MockClient, publicKey string) {
	_ = client.GetFS().MkdirAll(".ssh")
	_ = client.GetFS().WriteFile(".ssh/authorized_keys", []byte(publicKey+"\n"))
}

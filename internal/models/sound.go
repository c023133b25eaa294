package models

// SoundEntry 铃声
type SoundEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	AudioRef string `json:"audio_ref"`
	BuiltIn  bool   `json:"built_in,omitempty"`
}

// BuiltinSounds 内置铃声（不可删除）
func BuiltinSounds() []SoundEntry {
	return []SoundEntry{
		{ID: "classic", Name: "Klasik Zil", AudioRef: "https://assets.mixkit.co/active_storage/sfx/2869/2869-preview.mp3", BuiltIn: true},
		{ID: "school", Name: "Okul Zili", AudioRef: "https://assets.mixkit.co/active_storage/sfx/950/950-preview.mp3", BuiltIn: true},
	}
}

package domain

import "testing"

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():          "users",
		Character{}.TableName():     "characters",
		HomeCharacter{}.TableName(): "home_characters",
		Conversation{}.TableName():  "conversations",
		Message{}.TableName():       "messages",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("TableName = %q; want %q", got, want)
		}
	}
}

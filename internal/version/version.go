package version

const Value = "0.4.0"

func UserAgent() string {
	return "vigil/" + Value + " (security intelligence dashboard)"
}

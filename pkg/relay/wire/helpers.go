package wire

// NewHelloMessage creates a hello message.
func NewHelloMessage(id, tracker string) (*Message, error) {
	return NewMessage(TypeHello, HelloData{ID: id, Tracker: tracker})
}

// NewGazeMessage creates a gaze message.
func NewGazeMessage(x, y float64, t int64, valid bool) (*Message, error) {
	return NewMessage(TypeGaze, GazeData{X: x, Y: y, T: t, Valid: valid})
}

// NewButtonMessage creates a button message.
func NewButtonMessage(button int, pressed bool, t int64) (*Message, error) {
	return NewMessage(TypeButton, ButtonData{Button: button, Pressed: pressed, T: t})
}

// NewClockMessage creates a clock message.
func NewClockMessage(t int64) (*Message, error) {
	return NewMessage(TypeClock, ClockData{T: t})
}

// NewStartMessage creates a start message.
func NewStartMessage(filename string) (*Message, error) {
	return NewMessage(TypeStart, StartData{Filename: filename})
}

// NewStopMessage creates a stop message.
func NewStopMessage() (*Message, error) {
	return NewMessage(TypeStop, nil)
}

// NewTextMessage creates a log message.
func NewTextMessage(text string) (*Message, error) {
	return NewMessage(TypeMessage, TextData{Text: text})
}

// NewCodeMessage creates an event code message.
func NewCodeMessage(code int) (*Message, error) {
	return NewMessage(TypeCode, CodeData{Code: code})
}

// NewFlushMessage creates a flush message.
func NewFlushMessage() (*Message, error) {
	return NewMessage(TypeFlush, nil)
}

// NewPongMessage answers a ping.
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// GetGazeData extracts gaze data.
func (m *Message) GetGazeData() (*GazeData, error) {
	var d GazeData
	return &d, m.ParseData(&d)
}

// GetButtonData extracts button data.
func (m *Message) GetButtonData() (*ButtonData, error) {
	var d ButtonData
	return &d, m.ParseData(&d)
}

// GetClockData extracts clock data.
func (m *Message) GetClockData() (*ClockData, error) {
	var d ClockData
	return &d, m.ParseData(&d)
}

// GetHelloData extracts hello data.
func (m *Message) GetHelloData() (*HelloData, error) {
	var d HelloData
	return &d, m.ParseData(&d)
}

// GetStartData extracts start data.
func (m *Message) GetStartData() (*StartData, error) {
	var d StartData
	return &d, m.ParseData(&d)
}

// GetTextData extracts a log message.
func (m *Message) GetTextData() (*TextData, error) {
	var d TextData
	return &d, m.ParseData(&d)
}

// GetCodeData extracts an event code.
func (m *Message) GetCodeData() (*CodeData, error) {
	var d CodeData
	return &d, m.ParseData(&d)
}

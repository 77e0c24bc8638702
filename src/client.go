package storybook

// Client sends one prompt to a text model and returns its reply.
type Client interface {
	SendMessage(systemPrompt, userPrompt string) (string, error)
}

// ImageClient generates one image and returns its encoded bytes. Zero sizes,
// steps and an empty model select the backend's defaults.
type ImageClient interface {
	ImageGenerate(prompt string, steps, width, height int, modelName string, progress progressor) ([]byte, error)
}

// ReferenceImageClient is an ImageClient that can also follow a reference
// illustration, so characters keep their look from page to page.
type ReferenceImageClient interface {
	ImageClient
	ImageFromReference(prompt string, reference []byte, steps, width, height int, modelName string, progress progressor) ([]byte, error)
}

type progressor interface {
	UpdateOutput(message string)
}

type nullProgressor struct{}

func (n nullProgressor) UpdateOutput(message string) {}

func orNull(p progressor) progressor {
	if p == nil {
		return nullProgressor{}
	}
	return p
}

package message

import (
	"bytes"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "plugin create",
			msg: &Message{
				Txseq:  1,
				Txtime: 1700000000000,
				PluginCreate: &PluginCreate{
					Plugin:     "lightDome",
					PluginType: "LightDome",
				},
			},
		},
		{
			name: "plugin update",
			msg: &Message{
				Txseq: 2,
				PluginUpdate: &PluginUpdate{
					Plugin:    "lightDome",
					Attribute: "intensity",
					Value:     2.5,
				},
			},
		},
		{
			name: "renderer resize",
			msg: &Message{
				Txseq: 3,
				RendererAction: &RendererAction{
					Kind:   RendererActionResize,
					Width:  1920,
					Height: 1080,
				},
			},
		},
		{
			name: "image set",
			msg: &Message{
				Txseq: 4,
				ImageSet: &ImageSet{
					SourceType: 1,
					Images: map[string]*Image{
						"rgba": {
							Format: ImageFormatRGBA,
							Width:  4,
							Height: 2,
							Data:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			decoded, err := Decode(buf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if decoded.Txseq != tt.msg.Txseq {
				t.Errorf("Txseq %d, want %d", decoded.Txseq, tt.msg.Txseq)
			}

			if tt.msg.PluginCreate != nil {
				if decoded.PluginCreate == nil || *decoded.PluginCreate != *tt.msg.PluginCreate {
					t.Errorf("PluginCreate mismatch: %+v", decoded.PluginCreate)
				}
			}
			if tt.msg.RendererAction != nil {
				if decoded.RendererAction == nil || *decoded.RendererAction != *tt.msg.RendererAction {
					t.Errorf("RendererAction mismatch: %+v", decoded.RendererAction)
				}
			}
			if tt.msg.ImageSet != nil {
				if decoded.ImageSet == nil {
					t.Fatalf("ImageSet missing")
				}
				img := decoded.ImageSet.Images["rgba"]
				want := tt.msg.ImageSet.Images["rgba"]
				if img == nil || img.Format != want.Format || !bytes.Equal(img.Data, want.Data) {
					t.Errorf("Image mismatch: %+v", img)
				}
			}
		})
	}
}

func TestEncodeNil(t *testing.T) {
	_, err := Encode(nil)
	if err == nil {
		t.Fatalf("expected error for nil message")
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte{0xc1, 0xff, 0x00})
	if err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

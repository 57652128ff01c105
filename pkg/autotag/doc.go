// Package autotag predicts labels for audio files with an ONNX feature model
// and an ONNX scoring model, without a configuration file.
//
// Quick start:
//
//	t, err := autotag.New(autotag.WithModels(
//	    "models/discogs-effnet.onnx",
//	    "models/genre_discogs400.onnx",
//	    "models/genre_discogs400.json",
//	))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	res, _ := t.TagFile(ctx, "song.flac")
//	fmt.Println(res.Value) // Rock ; Pop
//
// A Tagger is not safe for concurrent use.
package autotag

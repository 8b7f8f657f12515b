package services

import "github.com/quoteshare/apiserver/types"

// DefaultSeedQuotes is the built-in collection loaded by the seed command.
var DefaultSeedQuotes = []types.Quote{
	{Content: "天生我材必有用。", Author: "李白"},
	{Content: "路漫漫其修远兮，吾将上下而求索。", Author: "屈原"},
	{Content: "不积跬步，无以至千里。", Author: "荀子"},
	{Content: "千里之行，始于足下。", Author: "老子"},
	{Content: "会当凌绝顶，一览众山小。", Author: "杜甫"},
	{Content: "海内存知己，天涯若比邻。", Author: "王勃"},
	{Content: "长风破浪会有时，直挂云帆济沧海。", Author: "李白"},
	{Content: "人生自古谁无死，留取丹心照汗青。", Author: "文天祥"},
	{Content: "少壮不努力，老大徒伤悲。", Author: "《汉乐府》"},
	{Content: "业精于勤荒于嬉，行成于思毁于随。", Author: "韩愈"},
	{Content: "黑发不知勤学早，白首方悔读书迟。", Author: "颜真卿"},
	{Content: "三人行，必有我师焉。", Author: "孔子"},
	{Content: "己所不欲，勿施于人。", Author: "孔子"},
	{Content: "知之者不如好之者，好之者不如乐之者。", Author: "孔子"},
	{Content: "敏而好学，不耻下问。", Author: "孔子"},
	{Content: "学而不思则罔，思而不学则殆。", Author: "孔子"},
	{Content: "读万卷书，行万里路。", Author: "刘彝"},
	{Content: "书山有路勤为径，学海无涯苦作舟。", Author: "韩愈"},
	{Content: "千教万教教人求真，千学万学学做真人。", Author: "陶行知"},
	{Content: "立身以立学为先，立学以读书为本。", Author: "欧阳修"},
}
